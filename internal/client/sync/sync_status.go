package sync

import (
	"log/slog"
	"sync"
)

// EventKind tells listeners what changed
type EventKind string

const (
	EventState    EventKind = "state"
	EventProgress EventKind = "progress"
	EventFile     EventKind = "file"
	EventFinished EventKind = "finished"
)

// Event is a progress notification of a sync round.
// Downloaded/Total count verified bytes against the bytes planned for the round;
// FileDownloaded/FileTotal track the transfer in flight.
type Event struct {
	Kind    EventKind `json:"kind"`
	RoundID string    `json:"roundId"`
	State   State     `json:"state"`

	Name           string `json:"name,omitempty"`
	FileDownloaded int64  `json:"fileDownloaded,omitempty"`
	FileTotal      int64  `json:"fileTotal,omitempty"`
	Downloaded     int64  `json:"downloaded"`
	Total          int64  `json:"total"`
	Error          string `json:"error,omitempty"`
}

// Fraction is Downloaded/Total in [0,1]. A round with nothing planned is complete.
func (e Event) Fraction() float64 {
	if e.Total <= 0 {
		return 1
	}
	f := float64(e.Downloaded) / float64(e.Total)
	if f > 1 {
		return 1
	}
	return f
}

type Listener func(Event)

type subscription struct {
	fn Listener
}

// Progress fans events out to listeners. Listeners may subscribe or unsubscribe
// from inside a callback; each dispatch works on a copy of the listener list.
type Progress struct {
	subs []*subscription
	mu   sync.Mutex
}

func NewProgress() *Progress {
	return &Progress{}
}

// Subscribe registers fn and returns the function that removes it
func (p *Progress) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.remove(sub) })
	}
}

func (p *Progress) remove(sub *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.subs {
		if s == sub {
			// copy on write, a dispatch may be ranging over the old slice
			subs := make([]*subscription, 0, len(p.subs)-1)
			subs = append(subs, p.subs[:i]...)
			p.subs = append(subs, p.subs[i+1:]...)
			return
		}
	}
}

func (p *Progress) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Emit delivers ev to every listener registered when the call started
func (p *Progress) Emit(ev Event) {
	p.mu.Lock()
	subs := make([]*subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		p.deliver(sub, ev)
	}
}

func (p *Progress) deliver(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sync progress listener panicked", "kind", ev.Kind, "panic", r)
		}
	}()
	sub.fn(ev)
}
