package config

import (
	"fmt"
	"os"

	"skype-alertbot/internal/format"

	"gopkg.in/yaml.v2"
)

// Defaults applied when the config file leaves a key unset.
const (
	DefaultListenAddress = "0.0.0.0"
	DefaultListenPort    = 8012
)

// StringList accepts either a single YAML string or a list of strings, so
// to_user can be written both ways.
type StringList []string

func (l *StringList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Config is the process configuration, loaded once at startup and treated as
// immutable afterwards.
type Config struct {
	SkypeUser       string      `yaml:"skype_user"`
	Password        string      `yaml:"password"`
	PasswordCommand string      `yaml:"password_command"`
	ToUser          StringList  `yaml:"to_user"`
	ListenAddress   string      `yaml:"listen_address"`
	ListenPort      int         `yaml:"listen_port"`
	Format          format.Mode `yaml:"format"`
	AlertmanagerURL string      `yaml:"alertmanager_url"`
	AmtoolAllowed   []string    `yaml:"amtool_allowed"`
}

// Load reads and validates the YAML configuration. SKYPE_PASSWORD in the
// environment overrides the password key so the secret can stay out of the
// file.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &Config{
		ListenAddress: DefaultListenAddress,
		ListenPort:    DefaultListenPort,
		Format:        format.ModeShort,
	}
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if password := os.Getenv("SKYPE_PASSWORD"); password != "" {
		cfg.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required keys are set and consistent.
func (c *Config) Validate() error {
	if c.SkypeUser == "" {
		return fmt.Errorf("missing required configuration: skype_user")
	}
	if c.Password == "" && c.PasswordCommand == "" {
		return fmt.Errorf("missing required configuration: password or password_command")
	}
	if len(c.ToUser) == 0 {
		return fmt.Errorf("missing required configuration: to_user")
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be between 1 and 65535 (got %d)", c.ListenPort)
	}
	if !c.Format.Valid() {
		return fmt.Errorf("format must be %q or %q (got %q)", format.ModeShort, format.ModeFull, c.Format)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddress, c.ListenPort)
}
