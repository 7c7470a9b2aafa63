package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wfunc/initiative-tracker/internal/initiative"
)

// LooseBool accepts true/false, "true"/"false", "1"/"0" and numbers.
type LooseBool struct {
	Value bool
	Set   bool
}

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = LooseBool{}
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		b.Value = v
	case float64:
		b.Value = v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			b.Value = true
		case "false", "0", "":
			b.Value = false
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
	default:
		return fmt.Errorf("invalid boolean %s", string(data))
	}
	b.Set = true
	return nil
}

// Or returns the decoded value, or def when the field was absent.
func (b LooseBool) Or(def bool) bool {
	if !b.Set {
		return def
	}
	return b.Value
}

// LooseInt accepts numbers and numeric strings in the int32 range.
// Fractions are truncated.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("number %s out of range", string(data))
		}
		*n = LooseInt(int(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			*n = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*n = LooseInt(i)
	default:
		return fmt.Errorf("invalid number %s", string(data))
	}
	return nil
}

// entryRequest one combatant as sent by clients
type entryRequest struct {
	CharacterID     LooseInt  `json:"character_id"`
	Name            string    `json:"name"`
	InitiativeRoll  LooseInt  `json:"initiative_roll"`
	InitiativeBonus LooseInt  `json:"initiative_bonus"`
	IsPlayer        LooseBool `json:"is_player"`
	AutoRoll        LooseBool `json:"auto_roll"`
}

// addEntriesRequest body of POST /initiative/sessions/:sessionId/entries.
// Items are decoded one by one so a malformed item is skipped, not fatal.
type addEntriesRequest struct {
	Entries []json.RawMessage `json:"entries" binding:"required"`
}

// toInput maps a wire entry onto the core input. A missing is_player means
// a player entry; the manager stores entries without a character as NPCs.
func (e entryRequest) toInput() initiative.EntryInput {
	characterID := uint(0)
	if e.CharacterID > 0 {
		characterID = uint(e.CharacterID)
	}
	return initiative.EntryInput{
		CharacterID:     characterID,
		Name:            e.Name,
		InitiativeRoll:  int(e.InitiativeRoll),
		InitiativeBonus: int(e.InitiativeBonus),
		IsPlayer:        e.IsPlayer.Or(true),
		AutoRoll:        e.AutoRoll.Or(false),
	}
}

func decodeEntries(raw []json.RawMessage) []initiative.EntryInput {
	inputs := make([]initiative.EntryInput, len(raw))
	for i, item := range raw {
		var e entryRequest
		if err := json.Unmarshal(item, &e); err != nil {
			inputs[i] = initiative.EntryInput{Malformed: "Malformed entry: " + err.Error()}
			continue
		}
		inputs[i] = e.toInput()
	}
	return inputs
}
