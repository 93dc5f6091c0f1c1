package transcript

import (
	"sync"

	"github.com/ent0n29/babel/internal/mailbox"
)

// Fragment is one recognizer result. Final fragments are settled text.
type Fragment struct {
	Text    string
	IsFinal bool
}

// Frame is the wire form of a Fragment.
type Frame struct {
	Transcription string `json:"transcription"`
	IsFinal       bool   `json:"is_final"`
}

func (f Fragment) Frame() Frame {
	return Frame{Transcription: f.Text, IsFinal: f.IsFinal}
}

// Listener is one broadcast stream's view of the feed.
type Listener struct {
	id  uint64
	box *mailbox.Box[Fragment]
}

func (l *Listener) Mailbox() *mailbox.Box[Fragment] { return l.box }

// Feed is the process-wide transcription queue. Every attached listener receives every
// fragment published after it attached; slow listeners lose their oldest fragments.
type Feed struct {
	mu        sync.Mutex
	listeners map[uint64]*Listener
	nextID    uint64
	capacity  int
	published uint64
}

func NewFeed(listenerCapacity int) *Feed {
	if listenerCapacity <= 0 {
		listenerCapacity = mailbox.DefaultCapacity
	}
	return &Feed{
		listeners: make(map[uint64]*Listener),
		capacity:  listenerCapacity,
	}
}

func (f *Feed) Listen() *Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	l := &Listener{id: f.nextID, box: mailbox.New[Fragment](f.capacity)}
	f.listeners[l.id] = l
	return l
}

func (f *Feed) Unlisten(l *Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, l.id)
}

// Publish hands frag to every listener without blocking.
func (f *Feed) Publish(frag Fragment) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
	for _, l := range f.listeners {
		l.box.Push(frag)
	}
	return len(f.listeners)
}

// Drain discards every queued fragment across listeners.
func (f *Feed) Drain() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.listeners {
		n += l.box.Drain()
	}
	return n
}

func (f *Feed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Feed) Published() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}
