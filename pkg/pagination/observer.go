package pagination

import "time"

// RequestEvent is emitted before a page request is sent.
type RequestEvent struct {
	Strategy  Kind
	Request   int
	Position  Position
	PageSize  int
	Variables map[string]any
}

// PageEvent is emitted after a page has been received and accumulated.
type PageEvent struct {
	Strategy Kind
	Request  int
	Items    int
	// Accumulated is the number of items collected so far, this page included.
	Accumulated int
	Info        PageInfo
}

// TerminatedEvent is emitted exactly once when a fetch reaches Done or Failed.
type TerminatedEvent struct {
	Strategy Kind
	Requests int
	Items    int
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer receives fetch loop transitions. Observers are called synchronously from
// the fetch loop and must not block.
type Observer interface {
	RequestIssued(RequestEvent)
	PageReceived(PageEvent)
	Terminated(TerminatedEvent)
}

// Observers fans events out to several observers in order.
type Observers []Observer

// RequestIssued implements Observer.
func (o Observers) RequestIssued(e RequestEvent) {
	for _, obs := range o {
		obs.RequestIssued(e)
	}
}

// PageReceived implements Observer.
func (o Observers) PageReceived(e PageEvent) {
	for _, obs := range o {
		obs.PageReceived(e)
	}
}

// Terminated implements Observer.
func (o Observers) Terminated(e TerminatedEvent) {
	for _, obs := range o {
		obs.Terminated(e)
	}
}
