package session

import "time"

// InteractionType tags what a recorded exchange produced.
type InteractionType string

const (
	InteractionAction  InteractionType = "action"
	InteractionAnswer  InteractionType = "answer"
	InteractionUnknown InteractionType = "unknown"
)

// Interaction is one recorded exchange. Immutable once appended; history is
// truncated only from the front.
type Interaction struct {
	Timestamp time.Time       `json:"timestamp"`
	Command   string          `json:"command"`
	Response  string          `json:"response"`
	Type      InteractionType `json:"type"`
	Success   bool            `json:"success"`
	// Tab and Item name what an action wrote and where; empty for answers.
	Tab  string `json:"tab,omitempty"`
	Item string `json:"item,omitempty"`
}

// Action is one entry of the bounded last-actions ring.
type Action struct {
	Tab       string    `json:"tab"`
	Item      string    `json:"item"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the derived, mutable per-session state used to scope prompts.
type Context struct {
	PreferredTab string            `json:"preferred_tab"`
	LastActions  []Action          `json:"last_actions"`
	Preferences  map[string]string `json:"preferences"`
	DocumentID   string            `json:"document_id,omitempty"`
}

// AuthState is the per-session authentication sub-record. A token bundle
// implies Authenticated; no bundle implies not authenticated.
type AuthState struct {
	Authenticated bool              `json:"authenticated"`
	Tokens        map[string]string `json:"-"`
	DisplayName   string            `json:"display_name,omitempty"`
}

// Session is the unit of conversational continuity. Owned exclusively by the
// Store and mutated only through its operations.
type Session struct {
	ID             string        `json:"session_id"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	History        []Interaction `json:"history"`
	Context        Context       `json:"context"`
	Auth           AuthState     `json:"auth"`
}

// Summary is the bounded view handed to oracle prompts: last 5 interactions,
// last 3 actions, preferred collection and preferences. Bounding keeps prompt
// size flat regardless of session age.
type Summary struct {
	SessionID    string            `json:"session_id"`
	Recent       []Interaction     `json:"recent"`
	LastActions  []Action          `json:"last_actions"`
	PreferredTab string            `json:"preferred_tab"`
	Preferences  map[string]string `json:"preferences"`
}

const (
	// summaryInteractions bounds Summary.Recent.
	summaryInteractions = 5
	// summaryActions bounds Summary.LastActions.
	summaryActions = 3
	// maxLastActions bounds the per-session action ring.
	maxLastActions = 10
)
