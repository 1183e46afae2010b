// Command weights prepares the offline inputs of the search service.
//
// It reads the corpus term-count file, computes each term's inverse document
// frequency and writes the weight table the searcher loads at startup. With
// -import-metadata it also loads the track metadata mapping file into the
// PostgreSQL tracks table.
//
// Usage:
//
//	go run ./cmd/weights [-config configs/development.yaml] [-out data/idf.txt] [-import-metadata]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	out := flag.String("out", "", "weight table output path (default: corpus.weightsPath)")
	importMeta := flag.Bool("import-metadata", false, "import corpus.metadataPath into postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *out == "" {
		*out = cfg.Corpus.WeightsPath
	}
	if err := writeWeights(ctx, cfg.Corpus, *out); err != nil {
		slog.Error("weight table generation failed", "error", err)
		os.Exit(1)
	}

	if *importMeta {
		if err := importMetadata(ctx, cfg); err != nil {
			slog.Error("metadata import failed", "error", err)
			os.Exit(1)
		}
	}
}

func writeWeights(ctx context.Context, cfg config.CorpusConfig, out string) error {
	start := time.Now()
	f, err := os.Open(cfg.CorpusPath)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	idx, err := corpus.Build(ctx, f, corpus.WithWorkers(cfg.BuildWorkers))
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	weights := vocabulary.ComputeWeights(idx.Len(), idx.DocumentFrequencies())

	// write next to the target and rename so a running searcher never reads
	// a partial table
	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := vocabulary.WriteWeights(tmp, weights); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("replacing %s: %w", out, err)
	}

	slog.Info("weight table written",
		"path", out,
		"documents", idx.Len(),
		"terms", idx.Vocabulary().Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func importMetadata(ctx context.Context, cfg *config.Config) error {
	fileMeta, err := metadata.LoadFile(cfg.Corpus.MetadataPath)
	if err != nil {
		return err
	}

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func(ctx context.Context) error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		return err
	}
	defer db.Close()

	store := metadata.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.Import(ctx, fileMeta.Tracks()); err != nil {
		return err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	slog.Info("metadata imported", "tracks", n)
	return nil
}
