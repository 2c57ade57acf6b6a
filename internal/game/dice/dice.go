// Package dice provides the randomness abstraction and roll-result types used
// by the combat and ability-check resolvers.
package dice

import "fmt"

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult holds the audit trail for a single evaluated dice expression.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string `json:"expression"`
	Dice       []int  `json:"dice"`
	Modifier   int    `json:"modifier"`
	// Doubled is set when the dice were rolled twice for a critical hit.
	Doubled bool `json:"doubled,omitempty"`
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll as "2d6+3 [4 5] +3 = 12", marking doubled rolls with "x2".
func (r RollResult) String() string {
	expr := r.Expression
	if r.Doubled {
		expr += " x2"
	}
	return fmt.Sprintf("%s %v %+d = %d", expr, r.Dice, r.Modifier, r.Total())
}

// D20 rolls a single twenty-sided die.
//
// Postcondition: 1 <= result <= 20.
func D20(src Source) int {
	return src.Intn(20) + 1
}
