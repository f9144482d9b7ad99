package services

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// ObjectUploader is the object storage the publisher writes to.
type ObjectUploader interface {
	UploadFile(ctx context.Context, bucket, object, localPath string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

type PublisherConfig struct {
	Concurrency    int           // default 10
	MaxRetries     int           // default 4
	InitialBackoff time.Duration // default 1s, doubled per retry
	WriteTimeout   time.Duration // per attempt, default 50s
}

// ResultPublisher uploads a run's output directory, keeping its folder layout.
type ResultPublisher struct {
	store  ObjectUploader
	cfg    PublisherConfig
	logger *slog.Logger
}

func NewResultPublisher(store ObjectUploader, cfg PublisherConfig, logger *slog.Logger) *ResultPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 50 * time.Second
	}
	return &ResultPublisher{store: store, cfg: cfg, logger: logger}
}

// Publish uploads every file under dir to bucket as prefix/<relative path>.
// Objects already present under prefix are skipped. It returns the object
// names that now exist for this run, sorted.
func (p *ResultPublisher) Publish(ctx context.Context, dir, bucket, prefix string) ([]string, error) {
	logCtx := p.logger.With("bucket", bucket, "prefix", prefix)

	files, err := collectFiles(dir)
	if err != nil {
		return nil, err
	}
	existing, err := p.store.List(ctx, bucket, prefix+"/")
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	logCtx.Info("Starting concurrent upload of results.", "files", len(files), "alreadyPresent", len(existing))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Concurrency)

	objects := make([]string, 0, len(files))
	for _, rel := range files {
		object := path.Join(prefix, filepath.ToSlash(rel))
		objects = append(objects, object)
		if present[object] {
			logCtx.Debug("Skipping object already uploaded.", "gcsObject", object)
			continue
		}
		localPath := filepath.Join(dir, rel)
		eg.Go(func() error {
			if err := p.uploadWithRetry(gctx, bucket, object, localPath); err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("one or more results failed to upload: %w", err)
	}
	sort.Strings(objects)
	logCtx.Info("All results uploaded successfully.", "objects", len(objects))
	return objects, nil
}

func (p *ResultPublisher) uploadWithRetry(ctx context.Context, bucket, object, localPath string) error {
	backoff := p.cfg.InitialBackoff
	var lastErr error

	for i := 0; i < p.cfg.MaxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
			defer cancel()
			return p.store.UploadFile(writeCtx, bucket, object, localPath)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", p.cfg.MaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		if i == p.cfg.MaxRetries-1 {
			break
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			p.logger.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	p.logger.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// collectFiles lists regular files under dir as paths relative to dir, sorted.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list results in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
