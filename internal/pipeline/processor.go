// Package pipeline turns an uploaded registry PDF into persisted transactions:
// text extraction, chunking, optional cleaning, extraction, normalization and
// persistence. Failures inside a stage are recorded as faults and never abort
// the run; only text extraction and chunking errors fail it.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/deeds-tracker/internal/chunk"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/extract"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
	"github.com/joseph-ayodele/deeds-tracker/internal/normalize"
	"github.com/joseph-ayodele/deeds-tracker/internal/ocr"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

// TextExtractor is satisfied by *ocr.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (ocr.ExtractionResult, error)
}

// Archiver keeps a copy of the uploaded document. Optional.
type Archiver interface {
	Archive(ctx context.Context, sha256Hex string, data []byte) (string, error)
}

type Config struct {
	DefaultProfile string
	ChunkSize      int
	ChunkOverlap   int
	Parallelism    int
	ProcessTimeout time.Duration
}

// Document is one uploaded file; it lives for a single run.
type Document struct {
	Filename string
	Data     []byte
}

// Report is the outcome of one run.
type Report struct {
	Transactions []*entity.Transaction
	Summary      entity.Summary
	sampleSize   int
}

// Preview returns the transactions echoed back to the caller: all of them, or
// the first sample_size when the profile sets one.
func (r *Report) Preview() []*entity.Transaction {
	if r.sampleSize > 0 && len(r.Transactions) > r.sampleSize {
		return r.Transactions[:r.sampleSize]
	}
	return r.Transactions
}

type profile struct {
	name       string
	cleanText  bool
	sampleSize int
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
}

type Processor struct {
	cfg       Config
	text      TextExtractor
	archiver  Archiver
	persister *Persister
	profiles  map[string]*profile
	logger    *zap.Logger
}

type Option func(*Processor)

// WithArchiver stores every upload before processing; failures are faults.
func WithArchiver(a Archiver) Option {
	return func(p *Processor) {
		if a != nil {
			p.archiver = a
		}
	}
}

// NewProcessor compiles every profile up front; a bad template or schema fails here.
func NewProcessor(
	cfg Config,
	text TextExtractor,
	gen llm.Generator,
	repo repository.TransactionRepository,
	profiles map[string]common.ProfileConfig,
	logger *zap.Logger,
	opts ...Option,
) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8000
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 10 * time.Minute
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "registry"
	}

	p := &Processor{
		cfg:       cfg,
		text:      text,
		persister: NewPersister(repo, logger),
		profiles:  make(map[string]*profile, len(profiles)),
		logger:    logger,
	}
	for name, pc := range profiles {
		prompts, err := llm.NewPrompts(pc)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		ex, err := extract.NewExtractor(gen, prompts, logger)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		p.profiles[name] = &profile{
			name:       name,
			cleanText:  pc.CleanText && prompts.HasClean(),
			sampleSize: pc.SampleSize,
			extractor:  ex,
			normalizer: normalize.NewNormalizer(gen, prompts, logger),
		}
	}
	if _, ok := p.profiles[cfg.DefaultProfile]; !ok {
		return nil, fmt.Errorf("default profile %q is not defined", cfg.DefaultProfile)
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Profiles lists the configured profile names.
func (p *Processor) Profiles() []string {
	names := make([]string, 0, len(p.profiles))
	for n := range p.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasProfile reports whether name (or the default, when empty) is configured.
func (p *Processor) HasProfile(name string) bool {
	_, ok := p.profile(name)
	return ok
}

func (p *Processor) profile(name string) (*profile, bool) {
	if name == "" {
		name = p.cfg.DefaultProfile
	}
	prof, ok := p.profiles[name]
	return prof, ok
}

// Process runs the whole pipeline for doc. It detaches from ctx cancellation so
// a client disconnect does not abandon half-written results; the run is bounded
// by the process timeout instead.
func (p *Processor) Process(ctx context.Context, profileName string, doc Document) (*Report, error) {
	prof, ok := p.profile(profileName)
	if !ok {
		return nil, common.InvalidInputf("unknown profile %q", profileName)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ProcessTimeout)
	defer cancel()

	log := common.LoggerFromContext(ctx, p.logger).With(
		zap.String("profile", prof.name),
		zap.String("file", doc.Filename))
	start := time.Now()

	sum := sha256.Sum256(doc.Data)
	shaHex := hex.EncodeToString(sum[:])
	report := &Report{
		Summary:    entity.Summary{Profile: prof.name, Faults: []entity.Fault{}},
		sampleSize: prof.sampleSize,
	}

	if p.archiver != nil {
		if key, err := p.archiver.Archive(ctx, shaHex, doc.Data); err != nil {
			log.Warn("pipeline.archive.failed", zap.Error(err))
			report.Summary.Faults = append(report.Summary.Faults, newFault(StageArchive, -1, -1, err))
		} else {
			log.Debug("pipeline.archive.ok", zap.String("key", key))
		}
	}

	text, err := p.text.Extract(ctx, doc.Data)
	if err != nil {
		log.Error("pipeline.text.failed", zap.Error(err))
		return nil, common.NewAppError("TEXT_EXTRACTION_FAILED", "could not read text from the document", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}
	report.Summary.Pages = text.Pages

	chunks, err := chunk.Split(text.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		log.Error("pipeline.chunk.failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}
	report.Summary.Chunks = len(chunks)
	metrics.ChunksTotal.Add(float64(len(chunks)))

	raws := p.extractChunks(ctx, prof, chunks)
	report.Summary.Faults = append(report.Summary.Faults, raws.Faults...)
	report.Summary.Extracted = len(raws.Value)
	metrics.RecordsTotal.WithLabelValues("extracted").Add(float64(len(raws.Value)))

	normalized := p.normalize(ctx, prof, raws.Value, doc.Filename, shaHex)
	report.Summary.Faults = append(report.Summary.Faults, normalized.Faults...)

	persisted := p.persister.Persist(ctx, normalized.Value)
	report.Summary.Faults = append(report.Summary.Faults, persisted.Faults...)
	report.Transactions = persisted.Value.Transactions
	report.Summary.Persisted = len(persisted.Value.Transactions)
	report.Summary.Skipped = persisted.Value.Skipped
	report.Summary.Failed = persisted.Value.Failed

	if report.Summary.Persisted == 0 && report.Summary.Failed > 0 {
		log.Error("pipeline.persist.unavailable", zap.Int("failed", report.Summary.Failed))
		return nil, common.NewAppError("STORE_UNAVAILABLE", "could not save any transactions",
			fmt.Errorf("%w: all %d writes failed: %s", common.ErrDatabase, report.Summary.Failed, persisted.Faults[0].Message))
	}

	log.Info("pipeline.done",
		zap.Int("pages", report.Summary.Pages),
		zap.String("text_method", text.Method),
		zap.Int("chunks", report.Summary.Chunks),
		zap.Int("extracted", report.Summary.Extracted),
		zap.Int("persisted", report.Summary.Persisted),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("faults", len(report.Summary.Faults)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return report, nil
}

// extractChunks cleans and extracts every chunk, in parallel when configured.
// Results are stored by chunk index so record order follows document order.
func (p *Processor) extractChunks(ctx context.Context, prof *profile, chunks []chunk.Chunk) Result[[]extract.RawTransaction] {
	results := make([]Result[[]extract.RawTransaction], len(chunks))

	var g errgroup.Group
	g.SetLimit(p.cfg.Parallelism)
	for i, c := range chunks {
		g.Go(func() error {
			results[i] = p.extractChunk(ctx, prof, c)
			return nil
		})
	}
	_ = g.Wait()

	out := OK([]extract.RawTransaction{})
	for _, r := range results {
		out.Value = append(out.Value, r.Value...)
		out.Faults = append(out.Faults, r.Faults...)
	}
	return out
}

func (p *Processor) extractChunk(ctx context.Context, prof *profile, c chunk.Chunk) Result[[]extract.RawTransaction] {
	log := common.LoggerFromContext(ctx, p.logger).With(zap.Int("chunk", c.Index))
	res := OK([]extract.RawTransaction{})

	text := c.Text
	if prof.cleanText {
		cleaned, err := prof.extractor.Clean(ctx, text)
		if err != nil {
			log.Warn("pipeline.clean.failed", zap.Error(err))
			res.Fail(StageClean, c.Index, -1, err)
		}
		text = cleaned
	}

	batch, err := prof.extractor.Extract(ctx, text)
	if err != nil {
		log.Warn("pipeline.extract.failed", zap.Error(err))
		res.Fail(StageExtract, c.Index, -1, err)
		return res
	}
	for _, d := range batch.Dropped {
		res.Fail(StageValidate, c.Index, d.Index, d.Err)
	}
	res.Value = batch.Records
	log.Debug("pipeline.extract.ok", zap.Int("records", len(batch.Records)))
	return res
}

// normalize maps raw records in order. Records without a document number are
// passed through unnormalized so the persister skips them without model calls.
func (p *Processor) normalize(ctx context.Context, prof *profile, raws []extract.RawTransaction, filename, sha string) Result[[]*entity.Transaction] {
	out := OK(make([]*entity.Transaction, 0, len(raws)))
	for i, raw := range raws {
		if raw.DocumentNumber() == "" {
			out.Value = append(out.Value, &entity.Transaction{})
			continue
		}
		tx, issues := prof.normalizer.Transaction(ctx, raw)
		for _, is := range issues {
			out.Fail(StageNormalize, -1, i, fmt.Errorf("%s: %w", is.Field, is.Err))
		}
		tx.Profile = prof.name
		tx.SourceFile = filename
		tx.SourceSHA256 = sha
		out.Value = append(out.Value, tx)
	}
	return out
}
