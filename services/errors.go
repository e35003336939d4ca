package services

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures for callers and the HTTP layer.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindPreconditionFailed  Kind = "precondition_failed"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindConflict            Kind = "conflict"
	KindInvalidArgument     Kind = "invalid_argument"
)

// Sentinels for errors.Is. An *EngineError matches the sentinel of its Kind.
var (
	ErrNotFound            = errors.New("not found")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Precondition reasons.
const (
	ReasonLevelRequired     = "level_required"
	ReasonVIPRequired       = "vip_required"
	ReasonItemRequired      = "item_required"
	ReasonPrerequisite      = "prerequisite_required"
	ReasonMissionInactive   = "mission_inactive"
	ReasonMissionCooldown   = "mission_cooldown"
	ReasonMissionCompleted  = "mission_completed"
	ReasonAlreadyOwned      = "already_owned"
	ReasonItemInactive      = "item_inactive"
	ReasonSoldOut           = "sold_out"
	ReasonAlreadyVIP        = "already_vip"
	ReasonAlreadyVoted      = "already_voted"
	ReasonProposalNotActive = "proposal_not_active"
	ReasonProposalExpired   = "proposal_expired"
	ReasonTooSoon           = "too_soon"
	ReasonStarsDisabled     = "stars_disabled"
)

// EngineError carries a Kind, a machine-readable Reason and optional Detail
// (e.g. the next eligible time for a cooldown).
type EngineError struct {
	Kind   Kind
	Reason string
	Detail map[string]any
	Err    error
}

func (e *EngineError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPreconditionFailed:
		return e.Kind == KindPreconditionFailed
	case ErrInsufficientBalance:
		return e.Kind == KindInsufficientBalance
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	}
	return false
}

func notFound(what, id string) error {
	return &EngineError{Kind: KindNotFound, Reason: what + "_not_found", Detail: map[string]any{"id": id}}
}

func precondition(reason string, detail map[string]any) error {
	return &EngineError{Kind: KindPreconditionFailed, Reason: reason, Detail: detail}
}

func insufficient(balance, required int64) error {
	return &EngineError{
		Kind:   KindInsufficientBalance,
		Reason: "insufficient_stars",
		Detail: map[string]any{"balance": balance, "required": required},
	}
}

func invalid(format string, args ...any) error {
	return &EngineError{Kind: KindInvalidArgument, Reason: "invalid_argument", Err: fmt.Errorf(format, args...)}
}

func conflict(err error) error {
	return &EngineError{Kind: KindConflict, Reason: "retry_exhausted", Err: err}
}

// ReasonOf returns the Reason of an *EngineError in err's chain, or "".
func ReasonOf(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ""
}
