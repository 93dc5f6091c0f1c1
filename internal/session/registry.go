package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/mailbox"
	"github.com/ent0n29/babel/internal/translate"
)

var ErrNotSubscribed = errors.New("client not subscribed")

// Session is one viewer's translation subscription.
type Session struct {
	ID        string
	CreatedAt time.Time

	mailbox *mailbox.Box[Message]

	mu         sync.Mutex
	language   string
	lastActive time.Time
	attached   int
}

func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Mailbox returns the session's outbound queue.
func (s *Session) Mailbox() *mailbox.Box[Message] { return s.mailbox }

// MarkDelivered records a successful delivery out of the mailbox.
func (s *Session) MarkDelivered(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// IdleFor reports how long it has been since the last delivery.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.ID,
		TargetLanguage: s.language,
		Attached:       s.attached,
		Queued:         s.mailbox.Len(),
		Dropped:        s.mailbox.Dropped(),
		CreatedAt:      s.CreatedAt,
		LastActiveAt:   s.lastActive,
	}
}

// Registry owns every live Session and its mailbox.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	mailboxSize int
	now         func() time.Time
	onChange    func(count int)
	onDrop      func(clientID string)
	logger      *log.Logger
}

func NewRegistry(mailboxSize int) *Registry {
	if mailboxSize <= 0 {
		mailboxSize = mailbox.DefaultCapacity
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		mailboxSize: mailboxSize,
		now:         time.Now,
		logger:      log.With("component", "sessions"),
	}
}

// SetChangeHook is called with the live session count after every add or removal.
func (r *Registry) SetChangeHook(hook func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = hook
}

// SetDropHook is called whenever a full mailbox evicts a message.
func (r *Registry) SetDropHook(hook func(clientID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDrop = hook
}

// Subscribe returns the session for clientID, creating it on first use. A session that
// already exists is reused with the same mailbox and switched to language.
func (r *Registry) Subscribe(clientID, language string) (*Session, bool, error) {
	if clientID == "" {
		return nil, false, errors.New("client id is required")
	}
	if !translate.IsSupported(language) {
		return nil, false, fmt.Errorf("%w: %q", translate.ErrUnsupportedLanguage, language)
	}
	now := r.now()

	r.mu.Lock()
	s, existed := r.sessions[clientID]
	if !existed {
		s = &Session{
			ID:         clientID,
			CreatedAt:  now,
			mailbox:    mailbox.New[Message](r.mailboxSize),
			language:   language,
			lastActive: now,
		}
		r.sessions[clientID] = s
	}
	s.mu.Lock()
	s.attached++
	s.language = language
	if existed {
		// A reconnecting generator starts a fresh idle window.
		s.lastActive = now
	}
	s.mu.Unlock()
	count := len(r.sessions)
	hook := r.onChange
	r.mu.Unlock()

	if existed {
		r.logger.Debug("reusing session", "client_id", clientID, "language", language)
	} else {
		r.logger.Info("session created", "client_id", clientID, "language", language)
		if hook != nil {
			hook(count)
		}
	}
	return s, existed, nil
}

// Publish queues msg for clientID. It returns ErrNotSubscribed when no session exists;
// callers treat that as a diagnostic, not a failure.
func (r *Registry) Publish(clientID string, msg Message) error {
	r.mu.RLock()
	s, ok := r.sessions[clientID]
	dropHook := r.onDrop
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, clientID)
	}
	if s.mailbox.Push(msg) {
		r.logger.Warn("mailbox full, dropped oldest message", "client_id", clientID)
		if dropHook != nil {
			dropHook(clientID)
		}
	}
	return nil
}

// NotifyAll queues msg for every live session without blocking and returns how many
// sessions were notified.
func (r *Registry) NotifyAll(msg Message) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	dropHook := r.onDrop
	r.mu.RUnlock()

	for _, s := range targets {
		if s.mailbox.Push(msg) && dropHook != nil {
			dropHook(s.ID)
		}
	}
	return len(targets)
}

// Detach releases one generator's hold on s. The session is removed once no
// generator is attached. Returns true when the session was removed.
func (r *Registry) Detach(s *Session) bool {
	r.mu.Lock()
	s.mu.Lock()
	if s.attached > 0 {
		s.attached--
	}
	remaining := s.attached
	s.mu.Unlock()

	removed := false
	if remaining == 0 {
		if cur, ok := r.sessions[s.ID]; ok && cur == s {
			delete(r.sessions, s.ID)
			removed = true
		}
	}
	count := len(r.sessions)
	hook := r.onChange
	r.mu.Unlock()

	if removed {
		r.logger.Info("session removed", "client_id", s.ID)
		if hook != nil {
			hook(count)
		}
	}
	return removed
}

// Unsubscribe removes clientID regardless of attached generators.
func (r *Registry) Unsubscribe(clientID string) bool {
	r.mu.Lock()
	_, ok := r.sessions[clientID]
	delete(r.sessions, clientID)
	count := len(r.sessions)
	hook := r.onChange
	r.mu.Unlock()

	if ok {
		r.logger.Info("session unsubscribed", "client_id", clientID)
		if hook != nil {
			hook(count)
		}
	}
	return ok
}

// Clear removes every session, used on process shutdown.
func (r *Registry) Clear() int {
	r.mu.Lock()
	n := len(r.sessions)
	r.sessions = make(map[string]*Session)
	hook := r.onChange
	r.mu.Unlock()

	if n > 0 && hook != nil {
		hook(0)
	}
	return n
}

func (r *Registry) Get(clientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot lists live sessions ordered by client id.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartReporter periodically logs the live sessions and feeds report with the count.
func (r *Registry) StartReporter(ctx context.Context, interval time.Duration, report func(count int)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := r.Snapshot()
				ids := make([]string, 0, len(snap))
				for _, s := range snap {
					ids = append(ids, s.ID)
				}
				r.logger.Info("active clients", "count", len(ids), "client_ids", ids)
				if report != nil {
					report(len(ids))
				}
			}
		}
	}()
}
