package domain

import "fmt"

// PreconditionError means the request cannot be attempted in the current
// session state or is missing required fields. Never retried automatically.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// ValidationError means the payload itself is malformed. Oversized payloads
// are flagged separately so the API can answer 413 instead of 400.
type ValidationError struct {
	Field     string
	Reason    string
	Oversized bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError means the referenced chat or message does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// DeliveryError means every delivery attempt in the fallback chain was
// exhausted. It keeps the last underlying error and the attempted tiers for
// diagnostics; it is never silently dropped.
type DeliveryError struct {
	Attempted []string
	LastErr   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempts (%v): %v", len(e.Attempted), e.Attempted, e.LastErr)
}

func (e *DeliveryError) Unwrap() error {
	return e.LastErr
}
