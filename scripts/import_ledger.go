package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/grounds"
	"slotbook/internal/models"
	"slotbook/internal/storage"

	"github.com/rs/zerolog"
)

// Imports a JSON ledger dump (date -> {bookings, blocks}) into the configured
// store, or dumps a date range with -from/-to. Moving between backends is a
// dump from one config followed by an import with another.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		inPath     = flag.String("in", "", "ledger JSON to import")
		from       = flag.String("from", "", "dump start date (YYYY-MM-DD)")
		to         = flag.String("to", "", "dump end date (YYYY-MM-DD)")
	)
	flag.Parse()

	if (*inPath == "") == (*from == "" || *to == "") {
		return fmt.Errorf("use either -in or -from with -to")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := storage.Open(ctx, cfg, &logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if *inPath == "" {
		ledger, err := store.LoadRange(ctx, *from, *to)
		if err != nil {
			return fmt.Errorf("load range: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ledger)
	}

	data, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	var ledger models.Ledger
	if err = json.Unmarshal(data, &ledger); err != nil {
		return fmt.Errorf("parse ledger: %w", err)
	}
	if len(ledger) == 0 {
		return fmt.Errorf("no days in %s", *inPath)
	}

	registry, err := grounds.NewRegistry(cfg.Venue)
	if path := os.Getenv("GROUNDS_PATH"); path != "" {
		registry, err = grounds.LoadFile(path)
	}
	if err != nil {
		return fmt.Errorf("grounds: %w", err)
	}

	stats, err := storage.Import(ctx, store, registry, ledger)
	if err != nil {
		return err
	}

	fmt.Printf("done: bookings=%d blocks=%d skipped=%d\n", stats.Bookings, stats.Blocks, stats.Skipped)
	return nil
}
