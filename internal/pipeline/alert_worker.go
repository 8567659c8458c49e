package pipeline

import (
	"context"

	"pet-monitor/tracker/internal/domain"
)

// ConditionSink receives raised alert conditions; in production this is the
// notification aggregator.
type ConditionSink interface {
	Raise(cond domain.AlertCondition)
}

// AlertWorker drains raised conditions into the aggregator. The aggregator
// does its own per-key locking; multiple workers are safe.
type AlertWorker struct {
	ch   <-chan *domain.AlertCondition
	sink ConditionSink
}

func NewAlertWorker(ch <-chan *domain.AlertCondition, sink ConditionSink) *AlertWorker {
	return &AlertWorker{ch: ch, sink: sink}
}

func (w *AlertWorker) Run(ctx context.Context) {
	for {
		select {
		case cond, ok := <-w.ch:
			if !ok {
				return
			}
			w.sink.Raise(*cond)

		case <-ctx.Done():
			return
		}
	}
}
