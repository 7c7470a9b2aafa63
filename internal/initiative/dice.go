package initiative

import (
	"crypto/rand"
	"math/big"
)

// Roller rolls one die with the given number of sides.
type Roller interface {
	Roll(sides int) int
}

// CryptoRoller rolls with crypto/rand.
type CryptoRoller struct{}

func (CryptoRoller) Roll(sides int) int {
	if sides < 1 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(sides)))
	if err != nil {
		return 1
	}
	return int(n.Int64()) + 1
}

// RollerFunc adapts a function to Roller.
type RollerFunc func(sides int) int

func (f RollerFunc) Roll(sides int) int { return f(sides) }

const (
	MinRoll = 1
	MaxRoll = 20
)

// ValidRoll reports whether roll is a possible d20 result.
func ValidRoll(roll int) bool {
	return roll >= MinRoll && roll <= MaxRoll
}
