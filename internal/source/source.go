// Package source provides the ingestion backends of the pipeline. Every
// backend yields model.RawEvent values of the same shape, so the pipeline
// never needs to know which one is active.
package source

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

// Factory builds a source from the ingestion section of the config.
type Factory func(cfg *config.IngestionConfig) (model.Source, error)

// registry holds the mapping of ingestion modes to their factory functions.
var registry = make(map[string]Factory)

// Register makes a backend available under the given mode name.
func Register(mode string, factory Factory) {
	if _, exists := registry[mode]; exists {
		panic(fmt.Sprintf("source '%s' already registered", mode))
	}
	registry[mode] = factory
}

// Modes returns the registered mode names in sorted order.
func Modes() []string {
	modes := make([]string, 0, len(registry))
	for m := range registry {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// New creates the source selected by cfg.Mode.
func New(cfg *config.IngestionConfig) (model.Source, error) {
	factory, ok := registry[cfg.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ingestion mode '%s'", model.ErrStartup, cfg.Mode)
	}

	log.Printf("Creating ingestion source for mode: '%s'", cfg.Mode)
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating source '%s': %w", cfg.Mode, err)
	}
	return src, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
