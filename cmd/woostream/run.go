package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/woostream/internal/config"
	"github.com/rickgao/woostream/internal/database"
	"github.com/rickgao/woostream/internal/recorder"
	"github.com/rickgao/woostream/internal/stream"
	"github.com/rickgao/woostream/internal/version"
)

const shutdownTimeout = 30 * time.Second

func newRunCmd(flags *rootFlags) *cobra.Command {
	var printMessages bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream the configured channels until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// The flag wins over the config file when set explicitly.
			logger := slog.Default()
			if !cmd.Flags().Changed("log-level") {
				if logger, err = newLogger(cfg.Log.Level); err != nil {
					return err
				}
				slog.SetDefault(logger)
			}

			logger.Info("starting woostream",
				"version", version.Version,
				"commit", version.Commit,
				"config", flags.configPath,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var out io.Writer
			if printMessages {
				out = cmd.OutOrStdout()
			}
			return run(ctx, cfg, out, logger)
		},
	}
	cmd.Flags().BoolVar(&printMessages, "print", false, "Write every message to stdout as a JSON line")
	return cmd
}

// run wires the manager, the optional recorder and the metrics server, and
// blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	creds, err := credentials(cfg)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	mgr, err := stream.NewManager(managerConfig(cfg, creds), logger,
		stream.WithAPIOptions(apiOptions(cfg, logger)...),
	)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	var (
		rec *recorder.Recorder
		db  pinger
	)
	if cfg.Recorder.Enabled {
		pool, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool, cfg.Recorder.Table); err != nil {
			return err
		}

		rec = recorder.New(recorderConfig(cfg), pool, logger)
		if err := rec.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
		db = pool
	}

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg.Metrics.Path, mgr, db, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return startChannels(gctx, mgr, cfg.Channels, messageHandler(out, rec, logger))
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err := <-mgr.Errors():
				logger.Error("channel failed", "error", err)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := mgr.Stop(shutdownCtx); err != nil {
			logger.Warn("manager stop", "error", err)
		}
		if rec != nil {
			rec.Stop(shutdownCtx)
		}
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("woostream stopped")
	return err
}

// startChannels starts, authenticates and subscribes every configured channel.
func startChannels(ctx context.Context, mgr *stream.Manager, channels []config.ChannelConfig, handler func(string) stream.Handler) error {
	for _, ch := range channels {
		if _, err := mgr.StartChannelSpec(ctx, channelSpec(ch), handler(ch.Name)); err != nil {
			return channelErr(ctx, ch.Name, "start", err)
		}

		if ch.Authenticated {
			if err := mgr.AuthenticateChannel(ctx, ch.Name); err != nil {
				return channelErr(ctx, ch.Name, "authenticate", err)
			}
		}

		for _, payload := range ch.Subscribe {
			if err := mgr.Subscribe(ctx, ch.Name, payload); err != nil {
				return channelErr(ctx, ch.Name, "subscribe", err)
			}
		}
	}
	return nil
}

// channelErr ignores errors caused by shutdown.
func channelErr(ctx context.Context, name, op string, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%s channel %s: %w", op, name, err)
}

// messageHandler builds the per-channel handler: record, print, log.
func messageHandler(out io.Writer, rec *recorder.Recorder, logger *slog.Logger) func(string) stream.Handler {
	var mu sync.Mutex
	var enc *json.Encoder
	if out != nil {
		enc = json.NewEncoder(out)
	}

	return func(channel string) stream.Handler {
		h := func(msg stream.Message) {
			logger.Debug("message", "channel", channel, "event", msg.Event(), "topic", msg.Topic())

			if enc != nil {
				mu.Lock()
				enc.Encode(struct {
					Channel string         `json:"channel"`
					Message stream.Message `json:"message"`
				}{channel, msg})
				mu.Unlock()
			}
		}
		if rec != nil {
			return rec.Wrap(channel, h)
		}
		return h
	}
}

