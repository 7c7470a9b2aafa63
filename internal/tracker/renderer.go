package tracker

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wfunc/initiative-tracker/internal/initiative"
)

// clearScreen moves the cursor home and clears an ANSI terminal.
const clearScreen = "\033[H\033[2J"

// TextRenderer prints snapshots for a terminal. With Clear set each frame
// is drawn on a cleared screen.
type TextRenderer struct {
	Clear bool

	mu  sync.Mutex
	out io.Writer
}

func NewTextRenderer(out io.Writer) *TextRenderer {
	return &TextRenderer{out: out}
}

func (r *TextRenderer) Render(campaignID uint, status *initiative.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Clear {
		io.WriteString(r.out, clearScreen)
	}
	io.WriteString(r.out, FormatStatus(campaignID, status))
}

// FormatStatus renders the round header and the turn order, marking the
// combatant whose turn it is.
func FormatStatus(campaignID uint, status *initiative.Status) string {
	var b strings.Builder
	if status == nil || !status.Active || status.Session == nil {
		fmt.Fprintf(&b, "Campaign %d: no active initiative\n", campaignID)
		return b.String()
	}

	fmt.Fprintf(&b, "Campaign %d · Round %d · Turn %d of %d\n",
		campaignID, status.Session.RoundNumber, status.Session.CurrentTurn, len(status.Entries))
	if len(status.Entries) == 0 {
		b.WriteString("  (no combatants yet)\n")
		return b.String()
	}

	width := 0
	for _, e := range status.Entries {
		if n := len([]rune(e.Name)); n > width {
			width = n
		}
	}
	for _, e := range status.Entries {
		marker := " "
		if e.IsCurrent {
			marker = ">"
		}
		kind := "NPC"
		if e.IsPlayer {
			kind = "PC"
			if e.PlayerUsername != "" {
				kind = "PC " + e.PlayerUsername
			}
		}
		fmt.Fprintf(&b, "%s %2d. %-*s %3d (%d%+d) %s\n",
			marker, e.OrderPosition, width, e.Name,
			e.TotalInitiative, e.InitiativeRoll, e.InitiativeBonus, kind)
	}
	return b.String()
}
