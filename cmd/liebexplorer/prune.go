package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/config"
	"github.com/LagoAI/LiebExplorer/pkg/profile"
)

// runPrune deletes saved profiles not updated within the given number of days.
func runPrune(ctx context.Context, args []string, base EnvConfig, out io.Writer) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", base.ConfigPath, "Configuration file, YAML or JSON (LIEB_CONFIG)")
	days := fs.Int("days", 30, "Delete profiles older than this many days")
	dryRun := fs.Bool("dry-run", false, "List matching profiles without deleting them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 0 {
		return fmt.Errorf("-days must not be negative")
	}

	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	manager, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := profile.Open(ctx, profileConfig(manager.Storage().Settings()))
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	defer store.Close()

	cutoff := time.Now().Add(-time.Duration(*days) * 24 * time.Hour)
	ids, err := pruneProfiles(ctx, store, cutoff, *dryRun)
	if err != nil {
		return err
	}

	verb := "Pruned"
	if *dryRun {
		verb = "Would prune"
	}
	fmt.Fprintf(out, "%s %d profile(s)\n", verb, len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

func pruneProfiles(ctx context.Context, store profile.Store, cutoff time.Time, dryRun bool) ([]string, error) {
	if !dryRun {
		ids, err := store.Prune(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to prune profiles: %w", err)
		}
		return ids, nil
	}

	records, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	var ids []string
	for _, r := range records {
		if r.LastUsed.Before(cutoff) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}
