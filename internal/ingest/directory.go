package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned    int
	Matched    int
	Queued     int
	Duplicates int
	Failed     int
}

// IngestDirectory walks root and queues every PDF under it. Per-file failures
// are recorded in the results and do not stop the walk.
func (in *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowed(path) {
			return nil
		}
		stats.Matched++

		res, err := in.IngestPath(ctx, path)
		if err != nil {
			res.Err = err.Error()
			stats.Failed++
		} else if res.Duplicate {
			stats.Duplicates++
		} else {
			stats.Queued++
		}
		results = append(results, res)
		return nil
	})
	in.logger.Info("ingest.dir.done",
		zap.String("root", root),
		zap.Int("matched", stats.Matched),
		zap.Int("queued", stats.Queued),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed))
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
