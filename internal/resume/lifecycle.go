package resume

import "sync"

type EventKind int

const (
	EventPrevious EventKind = iota
	EventNext
	EventBack
	EventHidden
	EventUnload
)

func (k EventKind) String() string {
	switch k {
	case EventPrevious:
		return "previous"
	case EventNext:
		return "next"
	case EventBack:
		return "back"
	case EventHidden:
		return "hidden"
	case EventUnload:
		return "unload"
	default:
		return "unknown"
	}
}

// Lifecycle fans page events out to subscribers.
type Lifecycle struct {
	mu   sync.Mutex
	next int
	subs map[int]func(EventKind)
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{subs: make(map[int]func(EventKind))}
}

// Subscribe registers fn and returns a function that removes it.
func (l *Lifecycle) Subscribe(fn func(EventKind)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Emit notifies every subscriber, then runs proceed (navigation) if given.
func (l *Lifecycle) Emit(kind EventKind, proceed func()) {
	l.mu.Lock()
	fns := make([]func(EventKind), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
	if proceed != nil {
		proceed()
	}
}

func (l *Lifecycle) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
