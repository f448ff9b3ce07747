package attendance

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/geo"
)

// ErrorKind classifies the errors returned by the attendance core.
type ErrorKind string

const (
	KindEntityNotFound        ErrorKind = "entity_not_found"
	KindCenterNotAssigned     ErrorKind = "center_not_assigned"
	KindCenterNotFound        ErrorKind = "center_not_found"
	KindCenterLocationMissing ErrorKind = "center_location_missing"
	KindInvalidLocation       ErrorKind = "invalid_location"
	KindOutOfRange            ErrorKind = "out_of_range"
	KindStoreUnavailable      ErrorKind = "store_unavailable"
	KindInvalidRequest        ErrorKind = "invalid_request"
)

var (
	ErrEntityNotFound        = &Error{Kind: KindEntityNotFound, Message: "entity not found"}
	ErrCenterNotAssigned     = &Error{Kind: KindCenterNotAssigned, Message: "no center assigned"}
	ErrCenterNotFound        = &Error{Kind: KindCenterNotFound, Message: "center not found"}
	ErrCenterLocationMissing = &Error{Kind: KindCenterLocationMissing, Message: "center location is not configured"}
	ErrInvalidLocation       = &Error{Kind: KindInvalidLocation, Message: "location must be a valid [latitude, longitude] pair"}

	// ErrRecordNotFound is returned by Store.FindRecord when no record exists for the day.
	ErrRecordNotFound = errors.New("attendance record not found")
)

// Error is a typed attendance failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewStoreError reports a persistence failure.
func NewStoreError(err error, msg string) error {
	return &Error{Kind: KindStoreUnavailable, Message: "attendance store unavailable", Err: errors.Wrap(err, msg)}
}

func newInvalidRequest(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

// OutOfRangeError is returned when a check-in happens too far from the center.
type OutOfRangeError struct {
	Distance float64 // meters
	Radius   float64 // meters
	Observed orb.Point
	Center   orb.Point
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("you are %.0f meters away from your center (allowed: %.0f meters)", e.Distance, e.Radius)
}

// Details returns the data a client needs to explain the rejection.
func (e *OutOfRangeError) Details() map[string]interface{} {
	return map[string]interface{}{
		"distance_meters": e.Distance,
		"radius_meters":   e.Radius,
		"observed":        geo.Pair(e.Observed),
		"center":          geo.Pair(e.Center),
	}
}

// KindOf returns the ErrorKind of err, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var oor *OutOfRangeError
	if errors.As(err, &oor) {
		return KindOutOfRange
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return KindInvalidRequest
	}
	return ""
}

// IsIntegrityFailure tells configuration/data failures apart from routine rejections.
func IsIntegrityFailure(kind ErrorKind) bool {
	switch kind {
	case KindEntityNotFound, KindCenterNotAssigned, KindCenterNotFound, KindCenterLocationMissing, KindStoreUnavailable:
		return true
	}
	return false
}
