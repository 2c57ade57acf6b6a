package dice

import "go.uber.org/zap"

// Roller wraps a Source and logs every roll at debug level.
//
// Roller itself satisfies Source, so it can be handed to any resolver that
// accepts one and every raw draw is still audited.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn draws from the wrapped source and logs the face value.
func (r *Roller) Intn(n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("die drawn", zap.Int("sides", n), zap.Int("face", v+1))
	return v
}

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	return r.log(Roll(expr, r.src))
}

// RollDoubled evaluates expr for a critical hit and logs the result.
func (r *Roller) RollDoubled(expr Expression) RollResult {
	return r.log(RollDoubled(expr, r.src))
}

// RollExpr parses expr and rolls it, logging the result.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

func (r *Roller) log(result RollResult) RollResult {
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Bool("doubled", result.Doubled),
		zap.Int("total", result.Total()),
	)
	return result
}
