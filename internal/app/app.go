// Package app собирает общие зависимости для cmd/*: логгер, VK, БД, синк.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	applog "github.com/G1P0/viralforward/internal/log"

	"github.com/G1P0/viralforward/internal/config"
	"github.com/G1P0/viralforward/internal/sources"
	"github.com/G1P0/viralforward/internal/store"
	"github.com/G1P0/viralforward/internal/syncer"
	"github.com/G1P0/viralforward/internal/vk"
)

type App struct {
	Cfg      config.Config
	Log      *slog.Logger
	VK       *vk.Client
	Resolver *vk.Resolver
	Videos   *vk.VideoLocator
	Store    *store.Store
	Syncer   *syncer.Syncer
}

// New открывает БД и поднимает клиента VK. Закрывать через Close.
func New(cfg config.Config) (*App, error) {
	logger := applog.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := vk.New(cfg.VKToken, vk.WithVersion(cfg.VKAPIVersion), vk.WithHTTPClient(httpClient))
	resolver := vk.NewResolver(client, vk.WithResolverLogger(logger))

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}

	return &App{
		Cfg:      cfg,
		Log:      logger,
		VK:       client,
		Resolver: resolver,
		Videos: &vk.VideoLocator{
			Source:    client,
			Extractor: vk.NewVideoExtractor(vk.NewHTTPPageFetcher(httpClient), logger),
		},
		Store:  st,
		Syncer: syncer.New(resolver, client, st, logger),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Sync перечитывает sources.yml на каждый прогон, чтобы правки подхватывались без рестарта.
func (a *App) Sync(ctx context.Context) (syncer.Report, error) {
	srcs, err := sources.Load(a.Cfg.SourcesFile, a.Cfg.TGChannelID, a.Cfg.WallLimit)
	if err != nil {
		return syncer.Report{}, err
	}
	return a.Syncer.Run(ctx, srcs)
}
