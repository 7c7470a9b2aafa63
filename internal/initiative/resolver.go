package initiative

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
)

// MaxNameLength is the longest combatant name accepted, in characters.
const MaxNameLength = 100

// cleanPasses bounds how many layers of escaped markup CleanName peels.
const cleanPasses = 4

// Combatant is a resolved name and bonus ready to be rolled into an entry.
type Combatant struct {
	Name        string
	Bonus       int
	OwnerUserID uint
}

// Resolver turns an entry request into a Combatant. Character sheets are
// authoritative for name and bonus; free-form names are cleaned of markup.
type Resolver struct {
	characters Characters
	policy     *bluemonday.Policy
}

func NewResolver(characters Characters) *Resolver {
	return &Resolver{
		characters: characters,
		policy:     bluemonday.StrictPolicy(),
	}
}

// Resolve looks up characterID when it is non-zero. A failed lookup is
// returned as an error and never falls back to the supplied values.
func (r *Resolver) Resolve(ctx context.Context, characterID uint, name string, bonus int) (*Combatant, error) {
	if characterID == 0 {
		clean, err := r.CleanName(name)
		if err != nil {
			return nil, err
		}
		return &Combatant{Name: clean, Bonus: bonus}, nil
	}

	info, err := r.characters.ResolveCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "Character not found.")
	}
	return &Combatant{
		Name:        info.Name,
		Bonus:       info.InitiativeBonus,
		OwnerUserID: info.OwnerUserID,
	}, nil
}

// CleanName strips markup and surrounding space from a free-form name.
// Escaped markup is decoded and stripped again until the name is stable.
func (r *Resolver) CleanName(name string) (string, error) {
	clean, stable := name, false
	for i := 0; i < cleanPasses && !stable; i++ {
		next := html.UnescapeString(r.policy.Sanitize(clean))
		stable = next == clean
		clean = next
	}
	if !stable {
		return "", apperrors.New(apperrors.ErrInvalidParam, "Name must not contain markup.")
	}
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "", apperrors.New(apperrors.ErrInvalidParam, "Name is required.")
	}
	if utf8.RuneCountInString(clean) > MaxNameLength {
		return "", apperrors.Newf(apperrors.ErrInvalidParam, "Name must be at most %d characters.", MaxNameLength)
	}
	return clean, nil
}
