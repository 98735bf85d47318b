// Package session holds per-session conversational history, derived context
// and authentication state, with a background reaper for stale entries.
// Durability is explicitly out of scope: sessions live in memory only.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns every live session. Sessions are created lazily on first
// reference, mutated only under the store's lock, and removed by the reaper
// once idle longer than maxAge. All accessors return clones so callers never
// observe a session mid-mutation.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxAge     time.Duration
	maxHistory int
	defaultTab string
	onExpire   func(id string)

	janitorCancel context.CancelFunc
}

// NewStore builds a session store. maxAge bounds idle lifetime, maxHistory
// bounds per-session history length.
func NewStore(maxAge time.Duration, maxHistory int, defaultTab string) *Store {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &Store{
		sessions:   make(map[string]*Session),
		maxAge:     maxAge,
		maxHistory: maxHistory,
		defaultTab: defaultTab,
	}
}

// SetExpireHook registers a callback invoked (outside the lock) for every
// session the reaper removes.
func (s *Store) SetExpireHook(hook func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

// NewID returns a fresh opaque session identifier for callers that do not
// supply their own.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// GetOrCreate returns the session for id, creating it on first reference.
// It always updates last activity and never fails.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActivityAt = time.Now().UTC()
	return clone(sess)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		Context: Context{
			PreferredTab: s.defaultTab,
			Preferences:  make(map[string]string),
		},
	}
	s.sessions[id] = sess
	return sess
}

// RecordInteraction appends to the session history, trims it to capacity and
// derives context updates: a successful action's tab becomes the preferred
// collection and joins the last-actions ring.
func (s *Store) RecordInteraction(id string, in Interaction) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActivityAt = time.Now().UTC()

	sess.History = append(sess.History, in)
	if overflow := len(sess.History) - s.maxHistory; overflow > 0 {
		sess.History = append(sess.History[:0], sess.History[overflow:]...)
	}

	if in.Type == InteractionAction && in.Success && in.Tab != "" {
		sess.Context.PreferredTab = in.Tab
		item := in.Item
		if item == "" {
			item = in.Command
		}
		sess.Context.LastActions = append(sess.Context.LastActions, Action{
			Tab:       in.Tab,
			Item:      item,
			Timestamp: in.Timestamp,
		})
		if overflow := len(sess.Context.LastActions) - maxLastActions; overflow > 0 {
			sess.Context.LastActions = append(sess.Context.LastActions[:0], sess.Context.LastActions[overflow:]...)
		}
	}
}

// SetAuth stores the authentication sub-record. A nil or empty token bundle
// clears authentication.
func (s *Store) SetAuth(id string, tokens map[string]string, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActivityAt = time.Now().UTC()
	if len(tokens) == 0 {
		sess.Auth = AuthState{}
		return
	}
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	sess.Auth = AuthState{
		Authenticated: true,
		Tokens:        copied,
		DisplayName:   displayName,
	}
}

// IsAuthenticated reports the session's authentication state without
// creating an unseen session.
func (s *Store) IsAuthenticated(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return ok && sess.Auth.Authenticated
}

// Tokens returns a copy of the session's token bundle, if any.
func (s *Store) Tokens(id string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.Auth.Authenticated {
		return nil, false
	}
	copied := make(map[string]string, len(sess.Auth.Tokens))
	for k, v := range sess.Auth.Tokens {
		copied[k] = v
	}
	return copied, true
}

// SetPreference records a free-form key/value preference.
func (s *Store) SetPreference(id, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActivityAt = time.Now().UTC()
	if sess.Context.Preferences == nil {
		sess.Context.Preferences = make(map[string]string)
	}
	sess.Context.Preferences[key] = value
}

// SetDocumentID records the currently selected backend document.
func (s *Store) SetDocumentID(id, documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastActivityAt = time.Now().UTC()
	sess.Context.DocumentID = documentID
}

// ConversationContext returns the bounded summary used in oracle prompts.
func (s *Store) ConversationContext(id string) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)

	sum := Summary{
		SessionID:    sess.ID,
		PreferredTab: sess.Context.PreferredTab,
		Preferences:  make(map[string]string, len(sess.Context.Preferences)),
	}
	for k, v := range sess.Context.Preferences {
		sum.Preferences[k] = v
	}

	recent := sess.History
	if len(recent) > summaryInteractions {
		recent = recent[len(recent)-summaryInteractions:]
	}
	sum.Recent = append([]Interaction(nil), recent...)

	actions := sess.Context.LastActions
	if len(actions) > summaryActions {
		actions = actions[len(actions)-summaryActions:]
	}
	sum.LastActions = append([]Action(nil), actions...)

	return sum
}

// Clear removes a single session immediately.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// ExpireSweep removes every session idle longer than maxAge and returns how
// many were removed. Expire hooks run after the lock is released.
func (s *Store) ExpireSweep() int {
	now := time.Now().UTC()
	var expired []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivityAt) > s.maxAge {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
	return len(expired)
}

// StartJanitor runs ExpireSweep on a fixed interval until the context is
// cancelled or Destroy is called.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.janitorCancel = cancel
	s.mu.Unlock()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ExpireSweep()
			}
		}
	}()
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Destroy stops the janitor and drops every session. Used only at process
// shutdown.
func (s *Store) Destroy() {
	s.mu.Lock()
	cancel := s.janitorCancel
	s.janitorCancel = nil
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func clone(sess *Session) *Session {
	c := *sess
	c.History = append([]Interaction(nil), sess.History...)
	c.Context.LastActions = append([]Action(nil), sess.Context.LastActions...)
	c.Context.Preferences = make(map[string]string, len(sess.Context.Preferences))
	for k, v := range sess.Context.Preferences {
		c.Context.Preferences[k] = v
	}
	if sess.Auth.Tokens != nil {
		c.Auth.Tokens = make(map[string]string, len(sess.Auth.Tokens))
		for k, v := range sess.Auth.Tokens {
			c.Auth.Tokens[k] = v
		}
	}
	return &c
}
