package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType int

const (
	EventGoldenCross EventType = iota
	EventDeadCross
	EventEntry
	EventExit
	EventForcedExit
	EventNoFill
	EventPendingExpired
)

// Event records one simulation step for diagnostics.
type Event struct {
	Date   time.Time
	Type   EventType
	Reason string
	Price  decimal.Decimal
}

// EventLog is an append-only trace of a single run.
type EventLog struct {
	Events []Event
}

func (l *EventLog) Append(e Event) { l.Events = append(l.Events, e) }
