package domain

import "fmt"

// Error types for consistent error handling across the SYGFP API.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientCredit indicates a budget line does not carry enough
// available credit for the requested amount.
type ErrInsufficientCredit struct {
	LigneID   string
	Available float64
	Required  float64
}

func (e *ErrInsufficientCredit) Error() string {
	return fmt.Sprintf("insufficient credit on line %s: available=%.0f required=%.0f", e.LigneID, e.Available, e.Required)
}

// ErrInvalidTransition indicates a workflow transition that the state
// machine does not allow from the current status.
type ErrInvalidTransition struct {
	Entity string
	From   string
	Action string
	Reason string
}

func (e *ErrInvalidTransition) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition [%s] %s from '%s': %s", e.Entity, e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("invalid transition [%s] %s from '%s'", e.Entity, e.Action, e.From)
}

// ErrStageOrder indicates an attempt to move a dossier to a stage that is
// not the immediate successor of its current stage.
type ErrStageOrder struct {
	Current   string
	Requested string
}

func (e *ErrStageOrder) Error() string {
	return fmt.Sprintf("stage '%s' is not reachable from '%s'", e.Requested, e.Current)
}

// ErrDuplicate indicates a duplicate operation (idempotency check).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate operation: %s", e.Key)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrMotifRequired indicates a rejection or deferral was attempted without
// the mandatory motif.
type ErrMotifRequired struct {
	Action string
}

func (e *ErrMotifRequired) Error() string {
	return fmt.Sprintf("motif obligatoire pour l'action %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrExerciceClosed indicates a write against a closed budget exercice.
type ErrExerciceClosed struct {
	Exercice int
}

func (e *ErrExerciceClosed) Error() string {
	return fmt.Sprintf("exercice %d est clôturé", e.Exercice)
}

// ErrConflict indicates a resource already exists or was concurrently
// modified.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
