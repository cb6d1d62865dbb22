// todosync is a terminal todo manager that keeps its views in sync with
// a todo REST service.
//
// Usage:
//
//	todosync [flags]        run the terminal UI
//	todosync init [flags]   write the default config file
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/app"
	"github.com/nhle/todosync/internal/credential"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("todosync", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the config file")
	flags.String("server", "", "base URL of the todo API, e.g. http://127.0.0.1:8000/api/v1")
	flags.String("mode", "", "session mode: login or demo")
	flags.String("log-file", "", "write logs to this file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	force := flags.Bool("force", false, "init: overwrite an existing config file")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v, err := model.NewClientViper(*configPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, flags); err != nil {
		return err
	}
	cfg, err := model.DecodeClientConfig(v)
	if err != nil {
		return err
	}

	rest := flags.Args()
	if len(rest) > 0 {
		switch rest[0] {
		case "init":
			return initConfig(*configPath, cfg, *force)
		default:
			return fmt.Errorf("unknown command %q", rest[0])
		}
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	return runUI(cfg, logger)
}

// bindFlags lets flags that were set on the command line override the
// config file.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"server.base_url": "server",
		"auth.mode":       "mode",
		"log.file":        "log-file",
		"log.level":       "log-level",
	}
	for key, name := range bindings {
		if !flags.Changed(name) {
			continue
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func initConfig(path string, cfg *model.AppConfig, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// newLogger returns a logger writing to the configured file. Without a
// file, logs are discarded so they never draw over the UI.
func newLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

func runUI(cfg *model.AppConfig, logger *slog.Logger) error {
	vault, err := credential.Open(cfg.Credentials.Dir)
	if err != nil {
		return err
	}
	sess := session.NewStore(vault, logger)

	client := api.NewClient(cfg.Server.BaseURL, sess,
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(logger),
	)
	classifier := session.NewClassifier(sess, logger)
	engine := sync.New(client, sess, classifier, sync.Options{
		Debounce:         cfg.Debounce(),
		PageSize:         cfg.Sync.PageSize,
		OverviewPageSize: cfg.Sync.OverviewPageSize,
		FetchTimeout:     cfg.Timeout(),
		Logger:           logger,
	})
	classifier.OnExpired(engine.Halt)

	demo := api.Registration{
		Username: cfg.Auth.DemoUsername,
		Password: cfg.Auth.DemoPassword,
		Email:    cfg.Auth.DemoEmail,
	}

	m := app.New(app.Deps{
		Session:     sess,
		Classifier:  classifier,
		Boot:        session.NewBootstrapper(sess, client, cfg.Auth.Mode, demo, logger),
		Engine:      engine,
		Holder:      query.NewHolder(engine.QueryChanged),
		Coordinator: mutation.New(client, engine, classifier, logger),
		API:         client,
		Timeout:     cfg.Timeout(),
		Logger:      logger,
	})

	logger.Info("starting", "server", cfg.Server.BaseURL, "mode", cfg.Auth.Mode)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	engine.Halt()
	return err
}
