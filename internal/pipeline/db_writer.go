package pipeline

import (
	"context"
	"log"
	"time"

	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/metrics"
)

// PositionAppender is the slice of the durable store the writer needs.
type PositionAppender interface {
	AppendPositions(ctx context.Context, recs []*domain.PositionRecord) error
}

// DBWriter batches position records and flushes them on size or timer,
// whichever comes first. A failed flush is retried once; after that the
// batch is dropped and counted — the log favors availability over
// completeness, and the next message must still be processed.
type DBWriter struct {
	ch        <-chan *domain.PositionRecord
	db        PositionAppender
	batchSize int
	flushMS   int
}

func NewDBWriter(
	ch <-chan *domain.PositionRecord,
	db PositionAppender,
	batchSize int,
	flushMS int,
) *DBWriter {
	return &DBWriter{
		ch:        ch,
		db:        db,
		batchSize: batchSize,
		flushMS:   flushMS,
	}
}

func (w *DBWriter) Run(ctx context.Context) {
	batch := make([]*domain.PositionRecord, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(ctx, batch)
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.Background(), batch)
			}
			return
		}
	}
}

func (w *DBWriter) flush(ctx context.Context, batch []*domain.PositionRecord) {
	err := w.db.AppendPositions(ctx, batch)
	if err != nil {
		log.Printf("[pipeline] position write failed (batch=%d), retrying: %v", len(batch), err)
		time.Sleep(500 * time.Millisecond)
		err = w.db.AppendPositions(ctx, batch)
		if err != nil {
			log.Printf("[pipeline] position write permanently failed (batch=%d): %v", len(batch), err)
			metrics.DBWriteFailures.Add(int64(len(batch)))
			return
		}
	}
	metrics.DBWriteSuccess.Add(int64(len(batch)))
}
