package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skype-alertbot/internal/amtool"
	"skype-alertbot/internal/bot"
	"skype-alertbot/internal/config"
	"skype-alertbot/internal/metrics"
	"skype-alertbot/internal/server"
	"skype-alertbot/internal/skype"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the configuration file")
	quiet      bool
	debug      bool
)

func init() {
	flag.BoolVar(&quiet, "q", false, "Only log warnings and errors")
	flag.BoolVar(&quiet, "quiet", false, "Only log warnings and errors")
	flag.BoolVar(&debug, "d", false, "Enable debug logging")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case debug:
		log.SetLevel(logrus.DebugLevel)
	case quiet:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func credentials(cfg *config.Config) skype.CredentialProvider {
	if cfg.PasswordCommand != "" {
		return skype.CommandCredential{Command: cfg.PasswordCommand}
	}
	return skype.StaticCredential(cfg.Password)
}

func main() {
	flag.Parse()

	// Optional .env so SKYPE_PASSWORD can come from the environment.
	_ = godotenv.Load()

	log := newLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Infof("Config file '%s' loaded", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	session := skype.NewSession(skype.NewClient(), cfg.SkypeUser, credentials(cfg), log)
	session.OnStateChange = func(authenticated bool) {
		if authenticated {
			m.Online.Set(1)
		} else {
			m.Online.Set(0)
		}
	}
	session.Start(ctx)

	invoker := amtool.New(cfg.AlertmanagerURL, cfg.AmtoolAllowed, log)
	if cfg.AlertmanagerURL == "" {
		log.Warn("alertmanager_url is not set; chat alert commands are disabled")
	}

	go bot.New(session, invoker, m, log).Run(ctx)

	srv := server.New(session, m, cfg.ToUser, cfg.Format, log)
	httpSrv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", cfg.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatalf("HTTP server failed: %v", err)
	case <-ctx.Done():
		log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown: %v", err)
	}
	log.Info("Stopped")
}
