package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindCapacityExceeded   ErrorKind = "capacity_exceeded"
	KindInsufficientPoints ErrorKind = "insufficient_points"
	KindAmbiguousPartial   ErrorKind = "ambiguous_partial_settlement"
	KindIncompleteOrder    ErrorKind = "incomplete_order_state"
	KindNotPrivileged      ErrorKind = "not_privileged"
	KindAlreadyResolved    ErrorKind = "already_resolved"
	KindConflict           ErrorKind = "conflict"
	KindStoreUnavailable   ErrorKind = "store_unavailable"
)

// Error is returned by every core operation. Field and ID name the offending
// input so callers can render it without parsing Message.
type Error struct {
	Kind    ErrorKind
	Field   string
	ID      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s", e.Field)
		if e.ID != "" {
			msg += fmt.Sprintf(", id=%s", e.ID)
		}
		msg += ")"
	} else if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func Validation(field, id, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, ID: id, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Field: entity, ID: id, Message: entity + " not found"}
}

func CapacityExceeded(tableID string, capacity int) *Error {
	return &Error{Kind: KindCapacityExceeded, Field: "table_id", ID: tableID,
		Message: fmt.Sprintf("table seats at most %d occupants", capacity)}
}

func InsufficientPoints(occupantID string, have, need int) *Error {
	return &Error{Kind: KindInsufficientPoints, Field: "points", ID: occupantID,
		Message: fmt.Sprintf("balance %d is below the required %d", have, need)}
}

func AmbiguousPartial(lineID string, merged int) *Error {
	return &Error{Kind: KindAmbiguousPartial, Field: "line_id", ID: lineID,
		Message: fmt.Sprintf("table-general group merges %d lines", merged)}
}

func IncompleteOrder(lineID string, status PrepStatus) *Error {
	return &Error{Kind: KindIncompleteOrder, Field: "prep_status", ID: lineID,
		Message: fmt.Sprintf("line is %s in the kitchen", status)}
}

func NotPrivileged(actorID string, role Role) *Error {
	return &Error{Kind: KindNotPrivileged, Field: "role", ID: actorID,
		Message: fmt.Sprintf("role %q cannot resolve approvals", role)}
}

func AlreadyResolved(requestID string, status ApprovalStatus) *Error {
	return &Error{Kind: KindAlreadyResolved, Field: "status", ID: requestID,
		Message: fmt.Sprintf("request is already %s", status)}
}

func Conflict(entity, id string) *Error {
	return &Error{Kind: KindConflict, Field: entity, ID: id, Message: entity + " changed concurrently"}
}

func StoreUnavailable(op string, cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: op, Cause: cause}
}
