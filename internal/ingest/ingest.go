// Package ingest feeds PDFs found on the local filesystem into the async
// upload queue: a one-off directory walk or a long-running folder watch.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
	"github.com/joseph-ayodele/deeds-tracker/internal/async"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
)

var (
	ErrNotPDF   = errors.New("not a PDF file")
	ErrTooLarge = errors.New("file exceeds the upload limit")
)

// Submitter is satisfied by async.Queue.
type Submitter interface {
	Enqueue(ctx context.Context, job async.Job) (*entity.UploadJob, error)
}

// Result is the per-file ingest outcome.
type Result struct {
	Path      string
	JobID     string
	SHA256    string
	Duplicate bool
	Err       string
}

type Config struct {
	Profile  string
	MaxBytes int64
}

// Ingestor queues files for processing, skipping content it has already queued.
type Ingestor struct {
	submit Submitter
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewIngestor(submit Submitter, cfg Config, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 25 << 20
	}
	return &Ingestor{submit: submit, cfg: cfg, logger: logger, seen: map[string]struct{}{}}
}

// IngestPath reads one file and enqueues it. Identical content is queued once
// per process lifetime.
func (in *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	res := Result{Path: path}
	if !allowed(path) {
		return res, ErrNotPDF
	}

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return res, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > in.cfg.MaxBytes {
		return res, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read: %w", err)
	}
	if !constants.LooksLikePDF(data) {
		return res, ErrNotPDF
	}
	sum := sha256.Sum256(data)
	res.SHA256 = hex.EncodeToString(sum[:])

	in.mu.Lock()
	_, dup := in.seen[res.SHA256]
	if !dup {
		in.seen[res.SHA256] = struct{}{}
	}
	in.mu.Unlock()
	if dup {
		res.Duplicate = true
		in.logger.Debug("ingest.file.duplicate", zap.String("path", path), zap.String("sha256", res.SHA256))
		return res, nil
	}

	job, err := in.submit.Enqueue(ctx, async.Job{
		Profile:  in.cfg.Profile,
		Document: pipeline.Document{Filename: filepath.Base(path), Data: data},
	})
	if err != nil {
		in.forget(res.SHA256)
		return res, fmt.Errorf("enqueue: %w", err)
	}
	res.JobID = job.ID
	in.logger.Info("ingest.file.queued",
		zap.String("path", path),
		zap.String("job_id", job.ID),
		zap.Int("bytes", len(data)))
	return res, nil
}

func (in *Ingestor) forget(sha string) {
	in.mu.Lock()
	delete(in.seen, sha)
	in.mu.Unlock()
}

func allowed(path string) bool {
	return constants.NormalizeExt(filepath.Ext(path)) == "pdf"
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
