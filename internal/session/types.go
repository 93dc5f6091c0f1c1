package session

import "time"

// Kind distinguishes settled translations from in-progress ones on the wire.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
)

// Message is the unit delivered into a client's mailbox.
type Message struct {
	Kind Kind
	Text string
}

// Frame is the wire form of a Message.
type Frame struct {
	Type        Kind   `json:"type"`
	Translation string `json:"translation"`
}

func (m Message) Frame() Frame {
	return Frame{Type: m.Kind, Translation: m.Text}
}

// Info is a point-in-time view of a session for status endpoints.
type Info struct {
	ID             string    `json:"client_id"`
	TargetLanguage string    `json:"target_language"`
	Attached       int       `json:"attached"`
	Queued         int       `json:"queued"`
	Dropped        uint64    `json:"dropped"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
}
