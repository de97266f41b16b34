// Package sink hands canonical questions to storage backends in batches and
// writes the run artifacts.
package sink

//go:generate mockgen -destination=mocks/sink.go -package=mocks github.com/jonesrussell/north-cloud/question-crawler/internal/sink Sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// DefaultBatchSize is the number of records per upsert call.
const DefaultBatchSize = 1000

// ErrEmptyBatch is returned by sinks asked to upsert nothing.
var ErrEmptyBatch = errors.New("sink: empty batch")

// UpsertResult counts the outcome of one upsert call.
type UpsertResult struct {
	InsertedOrUpdated int
	ErrorCount        int
}

// Add accumulates other into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.InsertedOrUpdated += other.InsertedOrUpdated
	r.ErrorCount += other.ErrorCount
}

// Sink stores questions keyed by QuestionID. Existing keys are updated.
type Sink interface {
	Name() string
	Upsert(ctx context.Context, questions []domain.Question) (UpsertResult, error)
}

// SinkError reports a failed batch.
type SinkError struct {
	Sink  string
	Batch int
	Size  int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: batch %d (%d records): %v", e.Sink, e.Batch, e.Size, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// FlushResult summarizes a flush to one sink.
type FlushResult struct {
	Sink    string
	Batches int
	UpsertResult
	Errors []*SinkError
}

// Batcher splits record sets into fixed-size batches.
type Batcher struct {
	size int
	log  logger.Logger
}

// NewBatcher returns a batcher; sizes below one use DefaultBatchSize.
func NewBatcher(size int, log logger.Logger) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Batcher{size: size, log: log.With(logger.Component("sink"))}
}

// Flush upserts questions to s batch by batch. A failed batch adds its size
// to ErrorCount and the remaining batches still run. Batches are not retried.
func (b *Batcher) Flush(ctx context.Context, s Sink, questions []domain.Question) FlushResult {
	result := FlushResult{Sink: s.Name()}

	for start, batch := 0, 1; start < len(questions); start, batch = start+b.size, batch+1 {
		end := min(start+b.size, len(questions))
		chunk := questions[start:end]
		result.Batches++

		if err := ctx.Err(); err != nil {
			result.ErrorCount += len(chunk)
			result.Errors = append(result.Errors, &SinkError{Sink: s.Name(), Batch: batch, Size: len(chunk), Err: err})
			continue
		}

		res, err := s.Upsert(ctx, chunk)
		if err != nil {
			sinkErr := &SinkError{Sink: s.Name(), Batch: batch, Size: len(chunk), Err: err}
			result.ErrorCount += len(chunk)
			result.Errors = append(result.Errors, sinkErr)
			b.log.Error("Batch upsert failed",
				logger.String("sink", s.Name()),
				logger.Int("batch", batch),
				logger.Int("size", len(chunk)),
				logger.Error(err),
			)
			continue
		}

		result.Add(res)
		b.log.Info("Batch upserted",
			logger.String("sink", s.Name()),
			logger.Int("batch", batch),
			logger.Int("size", len(chunk)),
			logger.Int("upserted", res.InsertedOrUpdated),
			logger.Int("errors", res.ErrorCount),
		)
	}

	return result
}
