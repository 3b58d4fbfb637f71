package amtool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTool is the alert-management CLI invoked for chat commands.
const DefaultTool = "amtool"

// defaultTimeout bounds a single tool invocation so a hung subprocess cannot
// block the chat dispatch loop forever.
const defaultTimeout = 60 * time.Second

var (
	// ErrNotAllowed is returned when the requesting chat user is not on the
	// amtool allow-list. The list fails closed: empty means nobody.
	ErrNotAllowed = errors.New("you are not allowed to run alert commands")

	// ErrNoAlertmanager is returned when no alertmanager_url is configured.
	ErrNoAlertmanager = errors.New("alert commands are disabled: no alertmanager_url configured")
)

// argPattern accepts label matchers and bare values such as
// alertname=HighCPU, severity=~"crit.*" or instance names. Anything else is
// rejected before it reaches the subprocess.
var argPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.:=~"!*/-]*$`)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args []string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	return f(ctx, name, args)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Invoker runs the alert-management CLI on behalf of chat users.
type Invoker struct {
	// Tool is the executable name, normally amtool.
	Tool string
	// Timeout bounds one invocation.
	Timeout time.Duration

	alertmanagerURL string
	allowed         map[string]struct{}
	runner          Runner
	log             *logrus.Logger
}

// New creates an Invoker executing the real amtool binary.
func New(alertmanagerURL string, allowed []string, log *logrus.Logger) *Invoker {
	return NewWithRunner(alertmanagerURL, allowed, execRunner{}, log)
}

// NewWithRunner creates an Invoker with a custom Runner, used by tests.
func NewWithRunner(alertmanagerURL string, allowed []string, runner Runner, log *logrus.Logger) *Invoker {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return &Invoker{
		Tool:            DefaultTool,
		Timeout:         defaultTimeout,
		alertmanagerURL: alertmanagerURL,
		allowed:         set,
		runner:          runner,
		log:             log,
	}
}

// Allowed reports whether sender may run alert commands.
func (inv *Invoker) Allowed(sender string) bool {
	_, ok := inv.allowed[sender]
	return ok
}

// Run executes the tool with the given arguments after checking the sender
// against the allow-list and validating every argument. A failed invocation
// comes back as an error whose text is safe to relay to the chat user.
func (inv *Invoker) Run(ctx context.Context, sender string, args []string) (string, error) {
	if !inv.Allowed(sender) {
		inv.log.WithField("sender", sender).Warn("amtool command denied")
		return "", ErrNotAllowed
	}
	if inv.alertmanagerURL == "" {
		return "", ErrNoAlertmanager
	}
	if err := validateArgs(args); err != nil {
		return "", err
	}

	full := append([]string{"--alertmanager.url", inv.alertmanagerURL}, args...)

	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	inv.log.WithFields(logrus.Fields{
		"sender": sender,
		"args":   strings.Join(args, " "),
	}).Info("running amtool")

	out, err := inv.runner.Run(ctx, inv.Tool, full)
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return "", fmt.Errorf("%s failed: %v: %s", inv.Tool, err, detail)
		}
		return "", fmt.Errorf("%s failed: %v", inv.Tool, err)
	}
	return string(out), nil
}

// validateArgs rejects anything a chat user could abuse to inject flags or
// shell metacharacters into the invocation.
func validateArgs(args []string) error {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			return fmt.Errorf("flag arguments are not accepted from chat: %q", a)
		}
		if !argPattern.MatchString(a) {
			return fmt.Errorf("invalid argument: %q", a)
		}
	}
	return nil
}
