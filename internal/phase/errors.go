package phase

import "errors"

// ErrBudgetExhausted is returned when a run consumes its iteration or
// wall-clock budget without the phase's completion predicate firing.
var ErrBudgetExhausted = errors.New("phase: iteration/time budget exhausted")
