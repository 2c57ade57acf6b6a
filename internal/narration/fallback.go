package narration

import (
	"context"

	"go.uber.org/zap"
)

// Output is rendered narration and whether the fallback produced it.
type Output struct {
	Text     string
	Fallback bool
}

// Fallback tries a primary narrator and renders with a secondary one when the
// primary fails. A narration failure never surfaces as an error.
type Fallback struct {
	primary   Narrator
	secondary Narrator
	logger    *zap.Logger
}

// WithFallback wraps primary with secondary.
//
// Precondition: secondary never fails for a well-formed Request.
func WithFallback(primary, secondary Narrator, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Render narrates req, reporting whether the fallback was used.
func (f *Fallback) Render(ctx context.Context, req Request) Output {
	if f.primary != nil {
		text, err := f.primary.Narrate(ctx, req)
		if err == nil {
			return Output{Text: text}
		}
		f.logger.Warn("narration failed, using template", zap.String("mode", string(req.Mode)), zap.Error(err))
	}
	text, err := f.secondary.Narrate(ctx, req)
	if err != nil {
		f.logger.Error("fallback narration failed", zap.Error(err))
	}
	return Output{Text: text, Fallback: true}
}

// Narrate implements Narrator.
func (f *Fallback) Narrate(ctx context.Context, req Request) (string, error) {
	return f.Render(ctx, req).Text, nil
}
