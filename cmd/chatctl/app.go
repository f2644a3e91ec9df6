package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatdesk/internal/auth"
	"github.com/zhouzirui/chatdesk/internal/chatapi"
	"github.com/zhouzirui/chatdesk/internal/client"
	"github.com/zhouzirui/chatdesk/internal/config"
	"github.com/zhouzirui/chatdesk/internal/logging"
	"github.com/zhouzirui/chatdesk/internal/session"
)

// cliLogLevel applies when neither --log-level nor LOG_LEVEL is set. Info lines
// would interleave with command output.
const cliLogLevel = "warn"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	apiURL   string
	logLevel string
}

// app holds the wired client stack for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	session    *session.Session
	store      session.TokenStore
	client     *client.Client
	auth       *auth.Manager
	api        *chatapi.API
	closeStore func() error
	stopNotify func()
}

func newApp(ctx context.Context, flags *globalFlags, stderr io.Writer) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flags.apiURL != "" {
		cfg.Client.BaseURL = flags.apiURL
	}

	level := flags.logLevel
	if level == "" {
		level = cliLogLevel
		if os.Getenv("LOG_LEVEL") != "" {
			level = cfg.Log.Level
		}
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := session.OpenStore(ctx, cfg.Client.TokenStore, cfg.Client.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	sess := session.New(store, logger)
	if err := sess.Restore(ctx); err != nil {
		logger.Warn("could not restore saved session", zap.Error(err))
	}

	stopNotify := sess.Subscribe(func(ev session.Event) {
		if ev.Reason == session.ReasonExpired {
			fmt.Fprintln(stderr, "Your session has expired. Run `chatctl login` to sign in again.")
		}
	})

	opts := []client.Option{client.WithLogger(logger)}
	if cfg.Client.RequestTimeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Client.RequestTimeout))
	}
	c := client.New(cfg.Client.BaseURL, sess, opts...)

	return &app{
		cfg:        cfg,
		logger:     logger,
		session:    sess,
		store:      store,
		client:     c,
		auth:       auth.NewManager(c, logger),
		api:        chatapi.New(c),
		closeStore: closeStore,
		stopNotify: stopNotify,
	}, nil
}

func (a *app) Close() error {
	a.stopNotify()
	_ = a.logger.Sync()
	return a.closeStore()
}

// storeLocation describes where the token is kept.
func (a *app) storeLocation() string {
	switch s := a.store.(type) {
	case *session.FileStore:
		return s.Path()
	case *session.MemoryStore:
		return "in memory, not persisted"
	default:
		return a.cfg.Client.TokenPath
	}
}

// requireLogin fails fast when there is no token, instead of letting the
// backend answer 401.
func (a *app) requireLogin() error {
	if a.session.State() != session.Authenticated {
		return fmt.Errorf("not logged in, run `chatctl login` first")
	}
	return nil
}

// withApp adapts a command body that needs the client stack into a cobra RunE.
func withApp(flags *globalFlags, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), flags, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
