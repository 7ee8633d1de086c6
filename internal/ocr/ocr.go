// Package ocr pulls plain text out of uploaded PDF documents.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
)

// ErrNoText is returned when neither strategy produced any text.
var ErrNoText = errors.New("no text extracted from document")

const (
	MethodPDFText   = "pdf-text"
	MethodPdftotext = "pdftotext"
)

type Config struct {
	Pdftotext    string // binary name or absolute path; if empty -> "pdftotext"
	MaxTextBytes int64  // cap on extracted text, default 4 MiB
	// DisableFallback skips pdftotext when the embedded reader fails.
	DisableFallback bool
}

type ExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdftotext"
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	return NewExtractorWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewExtractorWithRunner lets callers stub the external pdftotext command.
func NewExtractorWithRunner(cfg Config, runner Runner, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = 4 << 20
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract reads text from an in-memory PDF. The embedded reader runs first;
// pdftotext is tried when it errors or yields only whitespace.
func (e *Extractor) Extract(ctx context.Context, data []byte) (ExtractionResult, error) {
	start := time.Now()
	if !constants.LooksLikePDF(data) {
		return ExtractionResult{}, fmt.Errorf("extract text: not a PDF document")
	}

	res, err := e.readEmbedded(data)
	if err == nil && strings.TrimSpace(res.Text) != "" {
		res.Text = Normalize(res.Text)
		res.Duration = time.Since(start)
		e.logger.Debug("ocr.extract.ok",
			zap.String("method", res.Method),
			zap.Int("pages", res.Pages),
			zap.Int("chars", len(res.Text)),
			zap.Int64("elapsed_ms", res.Duration.Milliseconds()))
		return res, nil
	}

	var warnings []string
	if err != nil {
		warnings = append(warnings, err.Error())
		e.logger.Warn("ocr.embedded.failed", zap.Error(err))
	} else {
		warnings = append(warnings, "embedded reader returned no text")
	}
	if e.cfg.DisableFallback {
		if err == nil {
			err = ErrNoText
		}
		return ExtractionResult{Warnings: warnings, Duration: time.Since(start)}, fmt.Errorf("extract text: %w", err)
	}

	fb, fbErr := e.pdfToText(ctx, data)
	fb.Warnings = append(warnings, fb.Warnings...)
	fb.Duration = time.Since(start)
	if fbErr != nil {
		return fb, fmt.Errorf("extract text: %w", fbErr)
	}
	if strings.TrimSpace(fb.Text) == "" {
		return fb, fmt.Errorf("extract text: %w", ErrNoText)
	}
	fb.Text = Normalize(fb.Text)
	e.logger.Debug("ocr.extract.ok",
		zap.String("method", fb.Method),
		zap.Int("pages", fb.Pages),
		zap.Int("chars", len(fb.Text)),
		zap.Int64("elapsed_ms", fb.Duration.Milliseconds()))
	return fb, nil
}

// readEmbedded uses ledongthuc/pdf, which can panic on malformed input.
func (e *Extractor) readEmbedded(data []byte) (res ExtractionResult, err error) {
	res.Method = MethodPDFText
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return res, fmt.Errorf("open pdf reader: %w", err)
	}
	res.Pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		return res, fmt.Errorf("read plain text: %w", err)
	}
	text, err := io.ReadAll(io.LimitReader(plain, e.cfg.MaxTextBytes))
	if err != nil {
		return res, fmt.Errorf("read plain text: %w", err)
	}
	res.Text = string(capUTF8(text, e.cfg.MaxTextBytes))
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, data []byte) (ExtractionResult, error) {
	res := ExtractionResult{Method: MethodPdftotext}

	tmp, err := os.CreateTemp("", "deeds-*.pdf")
	if err != nil {
		return res, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			e.logger.Warn("ocr.tempfile.remove_failed", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return res, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		if len(errb) > 0 {
			res.Warnings = append(res.Warnings, truncate(string(errb), 1<<10))
		}
		return res, fmt.Errorf("pdftotext: %w", err)
	}
	res.Text = string(capUTF8(out, e.cfg.MaxTextBytes))
	// form feed separates pages
	res.Pages = 1 + strings.Count(strings.TrimRight(res.Text, "\f"), "\f")
	return res, nil
}

// capUTF8 cuts b to at most limit bytes without splitting a multi-byte rune.
func capUTF8(b []byte, limit int64) []byte {
	if int64(len(b)) <= limit {
		return b
	}
	cut := int(limit)
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}
