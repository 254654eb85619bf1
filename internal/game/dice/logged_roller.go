package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so that every loot roll is traceable at
// debug level. Roller itself satisfies Source.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Intn delegates to the wrapped Source without logging; it is called in
// tight selection loops.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}

// Roll draws a value within rng and logs it under name.
//
// Postcondition: result logged; rng.Min <= result <= rng.Max for a valid range.
func (r *Roller) Roll(name string, rng Range) int {
	v := rng.Roll(r.src)
	r.logger.Debug("loot roll",
		zap.String("roll", name),
		zap.String("range", rng.String()),
		zap.Int("result", v),
	)
	return v
}
