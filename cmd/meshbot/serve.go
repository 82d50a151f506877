package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/hupe1980/meshbot"
	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/health"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/portfolio"
	"github.com/hupe1980/meshbot/transcribe"
	"github.com/hupe1980/meshbot/transport/telegram"
	"github.com/hupe1980/meshbot/transport/wsconsole"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook",
		Long:  "Starts the HTTP server with the Telegram webhook, the optional portfolio API and websocket console, and the upstream health probe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// server bundles everything serve mounts on one gin engine.
type server struct {
	cfg     *config.Config
	logger  *logging.BotLogger
	bot     *meshbot.Bot
	tg      *telegram.Client
	webhook *telegram.Webhook
	store   *portfolio.Store
	prober  *health.Prober
}

func newServer(cfg *config.Config, logger *logging.BotLogger) (*server, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}

	bot, err := newBot(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &server{cfg: cfg, logger: logger, bot: bot}
	s.tg = newTelegramClient(cfg, logger)

	var transcriber transcribe.Transcriber
	if cfg.Transcription.Enabled {
		p := cfg.Providers[cfg.Transcription.Provider]
		transcriber = transcribe.NewWhisper(func(o *transcribe.WhisperOptions) {
			o.Model = cfg.Transcription.Model
			o.Language = cfg.Transcription.Language
			o.BaseURL = p.BaseURL
			o.APIKey = p.APIKey
			o.Logger = logger.WithComponent("transcribe")
		})
	}

	s.webhook = telegram.NewWebhook(s.tg, bot.Runner(), func(o *telegram.WebhookOptions) {
		o.AppName = cfg.AppName
		o.Secret = cfg.Telegram.WebhookSecret
		o.Path = cfg.Telegram.WebhookPath
		o.PublicBaseURL = cfg.Telegram.PublicBaseURL
		o.Transcriber = transcriber
		o.Logger = logger.WithComponent("telegram")
	})

	if cfg.Portfolio.DSN != "" {
		store, err := portfolio.Open(cfg.Portfolio.DSN)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	if cfg.Health.Enabled {
		s.prober = health.NewProber(func(o *health.Options) {
			if len(cfg.Health.Targets) > 0 {
				o.Targets = cfg.Health.Targets
			}
			o.Schedule = cfg.Health.Schedule
			o.Logger = logger.WithComponent("health")
		})
	}

	return s, nil
}

func newTelegramClient(cfg *config.Config, logger *logging.BotLogger) *telegram.Client {
	return telegram.NewClient(cfg.Telegram.Token, func(o *telegram.ClientOptions) {
		if cfg.Telegram.APIBaseURL != "" {
			o.BaseURL = cfg.Telegram.APIBaseURL
		}
		o.Logger = logger.WithComponent("telegram")
	})
}

// routes builds the engine. Exposed for tests.
func (s *server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleRoot)
	s.webhook.RegisterRoutes(r)

	if s.store != nil {
		portfolio.RegisterRoutes(r, s.store, func(o *portfolio.APIOptions) {
			o.Logger = s.logger.WithComponent("portfolio")
			if s.cfg.Telegram.OwnerChatID != 0 {
				o.Notifier = s.ownerNotifier()
			}
		})
	}

	if s.cfg.Console.Enabled {
		wsconsole.New(s.bot.Runner(), func(o *wsconsole.Options) {
			o.Token = s.cfg.Console.Token
			o.Logger = s.logger.WithComponent("console")
		}).RegisterRoutes(r)
	}

	return r
}

func (s *server) ownerNotifier() portfolio.Notifier {
	return portfolio.NotifierFunc(func(ctx context.Context, c portfolio.Contact) error {
		return s.tg.SendMessage(ctx, s.cfg.Telegram.OwnerChatID, 0, portfolio.FormatContact(c))
	})
}

func (s *server) handleRoot(c *gin.Context) {
	body := gin.H{"ok": true}
	if s.prober != nil {
		if report, ok := s.prober.Last(); ok {
			body["health"] = report
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *server) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("serve.store_close_failed", "error", err)
		}
	}
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	s, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("serve.signal", "action", "shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.prober != nil {
		if err := s.prober.Start(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve.listening", "addr", cfg.Server.Addr, "webhook", s.webhook.WebhookURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve.http_shutdown_failed", "error", err)
	}
	if err := s.bot.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve.runner_shutdown_failed", "error", err)
	}

	logger.Info("serve.stopped")
	return nil
}
