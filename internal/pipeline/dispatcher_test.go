package pipeline

import (
	"testing"

	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/metrics"
)

func TestDispatchNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, 1, 1)

	before := metrics.DBChannelDrops.Load()
	d.DispatchRecord(&domain.PositionRecord{})
	d.DispatchRecord(&domain.PositionRecord{}) // channel full, must drop
	if got := metrics.DBChannelDrops.Load() - before; got != 1 {
		t.Errorf("db drops = %d, want 1", got)
	}
	if len(d.DBChan) != 1 {
		t.Errorf("db channel len = %d, want 1", len(d.DBChan))
	}

	before = metrics.AlertChannelDrops.Load()
	d.DispatchAlert(&domain.AlertCondition{})
	d.DispatchAlert(&domain.AlertCondition{})
	if got := metrics.AlertChannelDrops.Load() - before; got != 1 {
		t.Errorf("alert drops = %d, want 1", got)
	}
}
