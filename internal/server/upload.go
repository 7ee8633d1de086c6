package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
	"github.com/joseph-ayodele/deeds-tracker/internal/async"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/pipeline"
)

// multipartMemory is how much of a form is held in memory before spilling to disk.
const multipartMemory = 8 << 20

type uploadResult struct {
	ProcessedTransactions []*entity.Transaction `json:"processedTransactions"`
	Summary               *entity.Summary       `json:"summary,omitempty"`
	JobID                 string                `json:"jobId,omitempty"`
	Status                string                `json:"status,omitempty"`
}

// upload handles POST /transactions/upload. Everything is validated before the
// pipeline sees a byte.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readDocument(w, r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	q := r.URL.Query()
	profile := strings.TrimSpace(q.Get("profile"))
	if !s.pipeline.HasProfile(profile) {
		s.handleError(w, r, common.InvalidInputf("unknown profile %q (available: %s)",
			profile, strings.Join(s.pipeline.Profiles(), ", ")))
		return
	}
	runAsync := s.cfg.Async
	if raw := q.Get("async"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.handleError(w, r, common.InvalidInput("async must be true or false"))
			return
		}
		runAsync = b
	}

	log := s.log(r).With(zap.String("file", doc.Filename), zap.String("profile", profile))
	log.Info("server.upload.accepted", zap.Int("bytes", len(doc.Data)), zap.Bool("async", runAsync))

	if runAsync && s.jobs != nil {
		job, err := s.jobs.Enqueue(r.Context(), async.Job{
			Profile:   profile,
			Document:  doc,
			RequestID: common.RequestIDFromContext(r.Context()),
		})
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		writeOK(w, http.StatusAccepted, "document queued for processing", uploadResult{
			ProcessedTransactions: []*entity.Transaction{},
			JobID:                 job.ID,
			Status:                string(job.Status),
		})
		return
	}

	report, err := s.pipeline.Process(r.Context(), profile, doc)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	summary := report.Summary
	writeOK(w, http.StatusOK,
		fmt.Sprintf("processed %d transactions", summary.Persisted),
		uploadResult{ProcessedTransactions: nonNil(report.Preview()), Summary: &summary})
}

// readDocument enforces the size cap, the field name and the PDF media type.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (pipeline.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return pipeline.Document{}, common.InvalidInputf("file exceeds the %d MB upload limit", s.cfg.MaxUploadBytes>>20)
		}
		return pipeline.Document{}, common.InvalidInput("expected a multipart/form-data upload")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(constants.UploadField)
	if err != nil {
		return pipeline.Document{}, common.InvalidInputf("no file uploaded in field %q", constants.UploadField)
	}
	defer file.Close()

	if !acceptsPDF(header.Header.Get("Content-Type"), header.Filename) {
		return pipeline.Document{}, common.InvalidInput("only PDF files are accepted")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return pipeline.Document{}, common.InvalidInput("uploaded file is empty")
	}
	if !constants.LooksLikePDF(data) {
		return pipeline.Document{}, common.InvalidInput("uploaded file is not a PDF")
	}
	return pipeline.Document{Filename: filepath.Base(header.Filename), Data: data}, nil
}

// acceptsPDF allows application/pdf, or a generic binary type on a .pdf file name.
func acceptsPDF(contentType, filename string) bool {
	switch constants.NormalizeMediaType(contentType) {
	case constants.MediaTypePDF:
		return true
	case "", "application/octet-stream":
		return constants.NormalizeExt(filepath.Ext(filename)) == "pdf"
	}
	return false
}

func nonNil(txs []*entity.Transaction) []*entity.Transaction {
	if txs == nil {
		return []*entity.Transaction{}
	}
	return txs
}
