package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/germanamz/chatbox/pkg/chatbox"
	"github.com/germanamz/chatbox/pkg/config"
	"github.com/germanamz/chatbox/pkg/conversation"
	"github.com/germanamz/chatbox/pkg/hostlink"
	"github.com/germanamz/chatbox/pkg/registry"
	"github.com/germanamz/chatbox/pkg/simhost"
)

const defaultConfigFile = "chatbox.yaml"

type rootOptions struct {
	configPath string
	envFile    string
	logFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "chatbox",
		Short:         "Terminal chat widget with a simulated or remote backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts, cmd.Flags().Changed("log-file"), cmd.Flags().Changed("log-level"))
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "path to configuration file (default: "+defaultConfigFile+" if present)")
	f.StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "chatbox.log", "file to write JSON logs to (empty disables logging)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newInitCmd(), newHostCmd())

	return cmd
}

// resolveConfigPath returns the explicit path, else the default file if it
// exists, else "" for built-in defaults.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func loadConfig(explicit string) (config.Config, error) {
	cfg := config.Default()
	if path := resolveConfigPath(explicit); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, opts rootOptions, logFileSet, logLevelSet bool) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	// Flags win over the config file only when given explicitly.
	if logFileSet || cfg.Log.File == "" {
		cfg.Log.File = opts.logFile
	}
	if logLevelSet || cfg.Log.Level == "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, closeLog, err := newLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	// Query the terminal before bubbletea owns stdin.
	chatbox.SetDarkBackground(lipgloss.HasDarkBackground())

	if err := registry.Use(chatbox.Plugin{Options: cfg.WidgetOptions()}); err != nil {
		return err
	}

	b, err := newBackend(cfg.Host, logger)
	if err != nil {
		return err
	}
	defer b.close()

	comp, err := registry.Mount(chatbox.TagName, registry.Props{
		Initial: cfg.WidgetOptions().Initial,
		Handler: b.handler,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	conv := comp.Conversation()
	defer func() { _ = conv.Close() }()

	if err := b.start(ctx, conv); err != nil {
		return err
	}

	logger.Info().Str("host", cfg.Host.Kind).Int("initial", len(conv.Messages())).Msg("chatbox started")

	p := tea.NewProgram(newAppModel(comp, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// backend is the reply source selected by the host config.
type backend struct {
	handler conversation.Handler
	start   func(ctx context.Context, conv *conversation.Conversation) error
	close   func()
}

func newBackend(h config.HostConfig, logger zerolog.Logger) (backend, error) {
	noop := func(context.Context, *conversation.Conversation) error { return nil }

	switch h.Kind {
	case config.HostSimulated:
		delay, err := h.Delay()
		if err != nil {
			return backend{}, err
		}
		sim := simhost.New(simhost.WithDelay(delay), simhost.WithLogger(logger))
		start := noop
		if h.Deferred {
			start = func(_ context.Context, conv *conversation.Conversation) error {
				sim.SetTarget(conv)
				return nil
			}
		}
		return backend{handler: sim, start: start, close: sim.Close}, nil

	case config.HostWebsocket:
		link := hostlink.NewServer(hostlink.WithLogger(logger))
		mux := http.NewServeMux()
		mux.Handle(h.Path, link)
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		start := func(ctx context.Context, conv *conversation.Conversation) error {
			ln, err := net.Listen("tcp", h.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", h.Listen, err)
			}
			link.Bind(conv)
			logger.Info().Str("addr", ln.Addr().String()).Str("path", h.Path).Msg("waiting for host")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("host link server")
				}
			}()
			return nil
		}
		closeFn := func() {
			_ = link.Close()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}
		return backend{handler: link, start: start, close: closeFn}, nil

	default:
		return backend{start: noop, close: func() {}}, nil
	}
}
