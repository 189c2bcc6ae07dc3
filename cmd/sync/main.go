package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/G1P0/viralforward/internal/app"
	"github.com/G1P0/viralforward/internal/config"
)

func main() {
	cfg := config.MustLoad()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := a.Sync(ctx)
	for _, s := range rep.Sources {
		if s.Skipped {
			fmt.Printf("skip  %-24s %s\n", s.Ref, s.Error)
			continue
		}
		fmt.Printf("ok    %-24s id=%s wall=%d parsed=%d inserted=%d\n", s.Ref, s.CommunityID, s.Fetched, s.Extracted, s.Inserted)
	}
	if err != nil {
		a.Log.Error("sync failed", "run_id", rep.RunID, "error", err)
		a.Close()
		os.Exit(1)
	}

	stats, _ := a.Store.Stats(ctx)
	fmt.Printf("sync ok: run=%s inserted=%d skipped=%d stats=%v db=%s\n",
		rep.RunID, rep.Inserted, rep.Skipped, stats, cfg.DBPath)
}
