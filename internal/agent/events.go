package agent

import "time"

// Event types published by a session
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventNewRun       = "new_run"
	EventBlindSelect  = "blind_selected"
	EventDecision     = "decision"
	EventHandPlayed   = "hand_played"
	EventDiscard      = "discard"
	EventCashOut      = "cash_out"
	EventShop         = "shop"
	EventGameOver     = "game_over"
	EventError        = "error"
)

// Event is a session milestone, serialised as-is to monitor clients
type Event struct {
	Type    string         `json:"type"`
	Session int            `json:"session"`
	Run     string         `json:"run,omitempty"` // ID of the run in progress
	Time    time.Time      `json:"time"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventSink receives session events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// NopSink discards every event
type NopSink struct{}

func (NopSink) Publish(Event) {}

// MultiSink fans events out to several sinks
type MultiSink []EventSink

func (m MultiSink) Publish(e Event) {
	for _, sink := range m {
		sink.Publish(e)
	}
}

// NewMultiSink drops nil sinks and returns NopSink when none remain
func NewMultiSink(sinks ...EventSink) EventSink {
	filtered := make(MultiSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}

	switch len(filtered) {
	case 0:
		return NopSink{}
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}
