package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/prospekt/internal/blob"
	"github.com/kalambet/prospekt/internal/storage"
)

// JobExtractText extracts the text of an uploaded document.
const JobExtractText = "extract_text"

// JobStore abstracts the job queue and document operations the worker needs.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	AbandonJob(ctx context.Context, id string, errMsg string) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	SetDocumentText(ctx context.Context, id, status, text string) error
}

// Queue is what uploads need to schedule extraction.
type Queue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	SetDocumentText(ctx context.Context, id, status, text string) error
}

// Blobs reads uploaded files.
type Blobs interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Observer is told the outcome of each processed job: "completed",
// "retry" or "failed".
type Observer func(jobType, outcome string)

// Extractable reports whether documents of contentType get text extraction.
func Extractable(contentType string) bool {
	return contentType == "application/pdf"
}

// Enqueue marks the document pending and schedules its extraction.
func Enqueue(ctx context.Context, q Queue, documentID string) error {
	payload, err := json.Marshal(extractPayload{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	if err := q.SetDocumentText(ctx, documentID, storage.TextStatusPending, ""); err != nil {
		return fmt.Errorf("marking document %s pending: %w", documentID, err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobExtractText,
		PayloadJSON: string(payload),
	}
	if err := q.EnqueueJob(ctx, job); err != nil {
		return fmt.Errorf("enqueueing extraction for %s: %w", documentID, err)
	}
	return nil
}

// Worker processes extract_text jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	blobs     Blobs
	extractor Extractor
	poll      time.Duration
	observe   Observer
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms. A nil extractor parses in
// process with PDFExtractor.
func NewWorker(store JobStore, blobs Blobs, extractor Extractor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	return &Worker{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		poll:      pollInterval,
		observe:   func(string, string) {},
		logger:    slog.Default(),
	}
}

// SetObserver installs a callback for job outcomes.
func (w *Worker) SetObserver(o Observer) {
	if o != nil {
		w.observe = o
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single extract_text job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobExtractText})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	payload, err := w.processJob(ctx, job)
	if err != nil {
		w.fail(ctx, job, payload, err)
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.observe(job.Type, "completed")
	return true, nil
}

func (w *Worker) fail(ctx context.Context, job *storage.Job, payload extractPayload, err error) {
	w.logger.Warn("job failed", "job_id", job.ID, "document_id", payload.DocumentID, "attempt", job.Attempts+1, "error", err)

	permanent := errors.Is(err, errPermanent) || errors.Is(err, ErrUnreadable)
	var markErr error
	if permanent {
		markErr = w.store.AbandonJob(ctx, job.ID, err.Error())
	} else {
		markErr = w.store.FailJob(ctx, job.ID, err.Error())
	}
	if markErr != nil {
		w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", markErr)
	}

	if !permanent && job.Attempts+1 < job.MaxAttempts {
		w.observe(job.Type, "retry")
		return
	}
	w.observe(job.Type, "failed")

	// A document that disappeared has nothing left to mark.
	if payload.DocumentID == "" || errors.Is(err, storage.ErrNotFound) {
		return
	}
	if setErr := w.store.SetDocumentText(ctx, payload.DocumentID, storage.TextStatusFailed, ""); setErr != nil {
		w.logger.Warn("marking document text failed", "document_id", payload.DocumentID, "error", setErr)
	}
}

var errPermanent = errors.New("permanent failure")

type extractPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (payload extractPayload, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic while processing job %s: %v", errPermanent, job.ID, p)
		}
	}()

	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return payload, fmt.Errorf("parsing payload: %w: %v", errPermanent, err)
	}

	doc, err := w.store.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return payload, fmt.Errorf("loading document %s: %w: %w", payload.DocumentID, errPermanent, err)
		}
		return payload, fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	rc, err := w.blobs.Get(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return payload, fmt.Errorf("reading %s: %w: %w", doc.FilePath, errPermanent, err)
		}
		return payload, fmt.Errorf("reading %s: %w", doc.FilePath, err)
	}
	defer rc.Close()

	text, err := w.extractor.Extract(ctx, rc)
	if err != nil {
		return payload, fmt.Errorf("extracting text from %s: %w", doc.FilePath, err)
	}

	if err := w.store.SetDocumentText(ctx, doc.ID, storage.TextStatusDone, text); err != nil {
		return payload, fmt.Errorf("storing text for %s: %w", doc.ID, err)
	}
	return payload, nil
}
