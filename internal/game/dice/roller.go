package dice

// Roll evaluates expr using src.
//
// Precondition: expr came from Parse; src is non-nil.
// Postcondition: len(result.Dice) == expr.Count and each die is in [1, expr.Sides].
func Roll(expr Expression, src Source) RollResult {
	return roll(expr, src, expr.Count, false)
}

// RollDoubled evaluates expr with twice the number of dice and the modifier applied once.
//
// Postcondition: len(result.Dice) == 2*expr.Count and result.Doubled is true.
func RollDoubled(expr Expression, src Source) RollResult {
	return roll(expr, src, 2*expr.Count, true)
}

func roll(expr Expression, src Source, count int, doubled bool) RollResult {
	rolled := make([]int, count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return RollResult{
		Expression: expr.String(),
		Dice:       rolled,
		Modifier:   expr.Modifier,
		Doubled:    doubled,
	}
}

// RollExpr parses expr and rolls it using src in a single call.
func RollExpr(expr string, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src), nil
}
