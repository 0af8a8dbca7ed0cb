package engine

import "fmt"

// UnknownVerbError reports a verb that is neither a global action nor an
// affordance of the resolved object.
type UnknownVerbError struct {
	Verb string
}

func (e *UnknownVerbError) Error() string {
	return fmt.Sprintf("unknown verb %q", e.Verb)
}

// RequirementError reports an action rejected before any effect ran: the
// requirement condition was false, or the actor could not pay the cost.
// Reason carries the requirement's surface text so callers can show it.
type RequirementError struct {
	Verb   string
	Reason string
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Reason)
}

// ReasonInsufficientAP is the RequirementError reason when the actor's
// action points cannot cover the declared cost.
const ReasonInsufficientAP = "insufficient_ap"

// ArityError reports a parameter count mismatch between the intent and the
// action's declared parameters.
type ArityError struct {
	Verb string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: want %d parameter(s), got %d", e.Verb, e.Want, e.Got)
}
