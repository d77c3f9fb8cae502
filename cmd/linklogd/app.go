package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"linklog/internal/bookmark"
	"linklog/internal/config"
	"linklog/internal/linksync"
	"linklog/internal/router"
	"linklog/internal/social"
	"linklog/internal/store"
	"linklog/internal/title"
	"linklog/internal/transport"
	"linklog/modules/help"
	"linklog/modules/links"
	"linklog/pkg/linklog"
)

const envConfigFile = "LINKLOG_CONFIG_FILE"

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "linklogd",
		Short:         "channel link log daemon",
		Long:          "linklogd collects URLs posted to a chat channel into a numbered, commentable, taggable log and mirrors mutations to a bookmark service and social posters.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")

	return cmd
}

func run(parent context.Context, configPath string) error {
	if configPath == "" {
		configPath = os.Getenv(envConfigFile)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	entryLog := store.New(cfg.DataDir, store.WithLogger(logger))
	if err := entryLog.Open(); err != nil {
		return fmt.Errorf("open entry log: %w", err)
	}
	defer func() {
		if err := entryLog.Close(); err != nil {
			logger.Warn("close entry log failed", "error", err)
		}
	}()

	fanout, err := buildFanout(cfg, logger)
	if err != nil {
		return err
	}
	fanout.Start()
	defer fanout.Close()

	dispatch := router.New(
		router.WithLogger(logger),
		router.WithQueueSize(pick(cfg.Router.QueueSize, config.DefaultRouterQueueSize)),
	)
	console := transport.NewConsole(
		transport.ConsoleConfig{Nick: cfg.Console.Nick, Channel: cfg.Console.Channel},
		transport.WithLogger(logger),
	)

	if err := registerModules(cfg, logger, dispatch, entryLog, fanout, console); err != nil {
		return err
	}

	logger.Info("linklogd starting",
		"server", cfg.Server,
		"data_dir", cfg.DataDir,
		"entries", entryLog.Len(),
		"source", console.Name(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatch.Run(groupCtx)
	})
	group.Go(func() error {
		defer stop()
		return console.Start(groupCtx, dispatch)
	})
	group.Go(func() error {
		return rotateLoop(groupCtx, entryLog, cfg.RotationInterval.Std(config.DefaultRotationInterval), logger)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run linklogd: %w", err)
	}
	logger.Info("linklogd stopped")

	return nil
}

// buildFanout assembles the mutation fan-out from the configured sync
// targets. With no targets configured the fan-out still runs, so module
// wiring does not branch.
func buildFanout(cfg config.Config, logger *slog.Logger) (*linksync.Fanout, error) {
	var bookmarker linklog.Bookmarker
	if cfg.Bookmarks != nil {
		client, err := bookmark.NewClient(cfg.Bookmarks.BaseURL, cfg.Bookmarks.Username, cfg.Bookmarks.Password)
		if err != nil {
			return nil, fmt.Errorf("build bookmark client: %w", err)
		}
		bookmarker = client
	}

	posters := make([]linklog.SocialPoster, 0, len(cfg.Social))
	for _, provider := range cfg.Social {
		poster, err := social.NewPoster(provider.Name, provider.BaseURL, provider.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("build social poster %s: %w", provider.Name, err)
		}
		posters = append(posters, poster)
	}

	return linksync.New(bookmarker, posters, cfg.Server,
		linksync.WithLogger(logger),
		linksync.WithWorkers(pick(cfg.Sync.Workers, config.DefaultSyncWorkers)),
		linksync.WithQueueSize(pick(cfg.Sync.QueueSize, config.DefaultSyncQueueSize)),
		linksync.WithCallTimeout(cfg.Sync.CallTimeout.Std(config.DefaultSyncCallTimeout)),
	), nil
}

func registerModules(
	cfg config.Config,
	logger *slog.Logger,
	dispatch *router.Router,
	entryLog *store.Store,
	fanout *linksync.Fanout,
	messenger linklog.Messenger,
) error {
	linkOptions := []links.Option{links.WithLogger(logger)}
	if cfg.TitlesEnabled() {
		linkOptions = append(linkOptions, links.WithTitleResolver(title.NewFetcher(
			title.WithTimeout(cfg.Titles.Timeout.Std(config.DefaultTitleTimeout)),
			title.WithRetries(pick(cfg.Titles.Retries, config.DefaultTitleRetries)),
		)))
	}
	linkModule, err := links.New(links.Config{
		LinkPrefix:    cfg.Links.LinkPrefix,
		ViewCommand:   cfg.Links.ViewCommand,
		TagsCommand:   cfg.Links.TagsCommand,
		DeleteCommand: cfg.Links.DeleteCommand,
		EditCommand:   cfg.Links.EditCommand,
		WindowSize:    pick(cfg.Links.WindowSize, config.DefaultWindowSize),
		Keywords:      cfg.Links.Keywords,
	}, entryLog, fanout, messenger, linkOptions...)
	if err != nil {
		return fmt.Errorf("build links module: %w", err)
	}
	if err := linkModule.Register(dispatch); err != nil {
		return fmt.Errorf("register links module: %w", err)
	}

	helpModule, err := help.New(dispatch, messenger, help.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build help module: %w", err)
	}
	if err := helpModule.Register(dispatch); err != nil {
		return fmt.Errorf("register help module: %w", err)
	}

	return nil
}

// rotateLoop checks for day rollover until ctx is cancelled.
func rotateLoop(ctx context.Context, entryLog *store.Store, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := entryLog.Rotate(now); err != nil {
				logger.Error("day rotation failed", "error", err)
			}
		}
	}
}

// pick returns value when set, fallback otherwise.
func pick(value int, fallback int) int {
	if value > 0 {
		return value
	}

	return fallback
}
