package initiative

import (
	"encoding/json"
	"time"
)

// Actor is the caller of a core operation. Verified is set by the request
// layer once authentication and the anti-forgery check have passed.
type Actor struct {
	UserID   uint
	Verified bool
}

// EntryInput is one requested combatant. CharacterID 0 means an ad hoc NPC.
type EntryInput struct {
	CharacterID     uint
	Name            string
	InitiativeRoll  int
	InitiativeBonus int
	IsPlayer        bool
	// AutoRoll asks the server to roll the d20 when InitiativeRoll is 0.
	AutoRoll bool
	// Malformed carries a decode error from the request layer. Such items
	// are skipped with it as the reason.
	Malformed string
}

// SkippedEntry reports a batch item that was not added.
type SkippedEntry struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// AddResult is the outcome of AddEntries. The status snapshot remains the
// authoritative view of the queue.
type AddResult struct {
	SessionID uint           `json:"session_id"`
	Added     []uint         `json:"added"`
	Skipped   []SkippedEntry `json:"skipped"`
}

// TurnResult is the cursor after NextTurn.
type TurnResult struct {
	Turn  int `json:"turn"`
	Round int `json:"round"`
}

// SessionView session metadata in a status snapshot
type SessionView struct {
	ID          uint      `json:"id"`
	CampaignID  uint      `json:"campaign_id"`
	CurrentTurn int       `json:"current_turn"`
	RoundNumber int       `json:"round_number"`
	StartedAt   time.Time `json:"started_at"`
	StartedBy   uint      `json:"started_by"`
	EntryCount  int       `json:"entry_count"`
}

// EntryView one combatant in a status snapshot
type EntryView struct {
	ID              uint   `json:"id"`
	SessionID       uint   `json:"session_id"`
	CharacterID     *uint  `json:"character_id"`
	Name            string `json:"name"`
	InitiativeRoll  int    `json:"initiative_roll"`
	InitiativeBonus int    `json:"initiative_bonus"`
	TotalInitiative int    `json:"total_initiative"`
	IsPlayer        bool   `json:"is_player"`
	OrderPosition   int    `json:"order_position"`
	IsCurrent       bool   `json:"is_current"`
	CharacterName   string `json:"character_name,omitempty"`
	PlayerUsername  string `json:"player_username,omitempty"`
}

// Status is the snapshot served to every client of a campaign.
type Status struct {
	Active  bool         `json:"active"`
	Session *SessionView `json:"session,omitempty"`
	Entries []EntryView  `json:"entries"`
}

// MarshalJSON renders an inactive status as exactly {"active":false}.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Active {
		return []byte(`{"active":false}`), nil
	}
	type active Status
	out := active(s)
	if out.Entries == nil {
		out.Entries = []EntryView{}
	}
	return json.Marshal(out)
}

// Current returns the entry whose turn it is.
func (s *Status) Current() (EntryView, bool) {
	for _, entry := range s.Entries {
		if entry.IsCurrent {
			return entry, true
		}
	}
	return EntryView{}, false
}
