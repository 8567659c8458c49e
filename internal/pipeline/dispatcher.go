package pipeline

import (
	"pet-monitor/tracker/internal/domain"
	"pet-monitor/tracker/internal/metrics"
)

// Dispatcher fans decoded telemetry out to the pipeline workers over bounded
// channels. Sends never block: when a channel is full the item is dropped
// and counted, keeping the bus consumer responsive under storms.
type Dispatcher struct {
	DBChan    chan *domain.PositionRecord
	StateChan chan *domain.StateUpdate
	AlertChan chan *domain.AlertCondition
}

func NewDispatcher(dbSize, stateSize, alertSize int) *Dispatcher {
	return &Dispatcher{
		DBChan:    make(chan *domain.PositionRecord, dbSize),
		StateChan: make(chan *domain.StateUpdate, stateSize),
		AlertChan: make(chan *domain.AlertCondition, alertSize),
	}
}

func (d *Dispatcher) DispatchRecord(rec *domain.PositionRecord) {
	select {
	case d.DBChan <- rec:
	default:
		metrics.DBChannelDrops.Add(1)
	}
}

func (d *Dispatcher) DispatchState(u *domain.StateUpdate) {
	select {
	case d.StateChan <- u:
	default:
		metrics.StateChannelDrops.Add(1)
	}
}

func (d *Dispatcher) DispatchAlert(c *domain.AlertCondition) {
	select {
	case d.AlertChan <- c:
	default:
		metrics.AlertChannelDrops.Add(1)
	}
}
