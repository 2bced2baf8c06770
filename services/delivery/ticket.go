// Package delivery presents unseen alerts one at a time and records how
// each display ended.
package delivery

import (
	"sync"

	"github.com/upb/hms-audit/models"
)

// Outcome is how a ticket's display ended
type Outcome string

const (
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeDismissed    Outcome = "dismissed"
	OutcomeTimedOut     Outcome = "timed_out"
)

// Ticket wraps one alert while it is queued or presented. Its lifecycle
// ends exactly once, by acknowledge, dismiss or display timeout.
type Ticket struct {
	Alert *models.Alert

	onAcknowledge func()
	onDismiss     func()

	once sync.Once
	done chan Outcome
}

// NewTicket creates a ticket. Either callback may be nil.
func NewTicket(alert *models.Alert, onAcknowledge, onDismiss func()) *Ticket {
	return &Ticket{
		Alert:         alert,
		onAcknowledge: onAcknowledge,
		onDismiss:     onDismiss,
		done:          make(chan Outcome, 1),
	}
}

// Acknowledge ends the ticket as clicked. Reports false when it had already ended.
func (t *Ticket) Acknowledge() bool {
	return t.finish(OutcomeAcknowledged, t.onAcknowledge)
}

// Dismiss ends the ticket as closed. Reports false when it had already ended.
func (t *Ticket) Dismiss() bool {
	return t.finish(OutcomeDismissed, t.onDismiss)
}

// Done delivers the outcome once the ticket has ended
func (t *Ticket) Done() <-chan Outcome {
	return t.done
}

func (t *Ticket) expire() bool {
	return t.finish(OutcomeTimedOut, nil)
}

func (t *Ticket) finish(outcome Outcome, callback func()) bool {
	ended := false
	t.once.Do(func() {
		ended = true
		if callback != nil {
			callback()
		}
		t.done <- outcome
	})
	return ended
}
