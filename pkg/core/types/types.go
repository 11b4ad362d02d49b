// Package types holds the domain model shared by the gateway, the tool
// executors and the stores.
package types

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one completed spoken utterance. Immutable once produced.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Gender drives verb conjugation and address forms in the rendered
// instructions. It is an explicit profile field, never inferred.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// Identity is the per-user profile consumed at session creation.
type Identity struct {
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Age           int            `json:"age"`
	Gender        Gender         `json:"gender"`
	Language      string         `json:"language"`
	CognitiveMode string         `json:"cognitive_mode"`
	Family        []FamilyMember `json:"family"`
	Medications   []Medication   `json:"medications"`
}

type FamilyMember struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
}

type Medication struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Schedule string `json:"schedule"`
}

// SafetyRule is one behavioral guard rendered into the instruction document.
type SafetyRule struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// MemoryFact is one durable item in the mid- or long-term memory tiers.
type MemoryFact struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemoryTiers groups the three tiers loaded at session creation: the rolling
// short-term turn window, mid-term session facts and long-term facts.
type MemoryTiers struct {
	ShortTerm []Turn       `json:"short_term"`
	MidTerm   []MemoryFact `json:"mid_term"`
	LongTerm  []MemoryFact `json:"long_term"`
}

// MusicPreferences personalizes play_audio searches and prompt directives.
type MusicPreferences struct {
	Genres  []string `json:"genres,omitempty"`
	Artists []string `json:"artists,omitempty"`
	Era     string   `json:"era,omitempty"`
}

// Track is one playable item from the music provider.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
	Kind   string `json:"kind"`
}

// Photo is one stored media item eligible for sequential disclosure.
type Photo struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Caption     string     `json:"caption,omitempty"`
	Names       []string   `json:"names,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	TimesShown  int        `json:"times_shown"`
	LastShownAt *time.Time `json:"last_shown_at,omitempty"`
}

// Alert is a persisted safety alert. Downstream notification is best effort
// and tracked separately from persistence.
type Alert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Notified    bool      `json:"notified"`
}
