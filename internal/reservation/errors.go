package reservation

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the platform rejected the credentials on either
	// channel. Fatal: never retried.
	ErrAuthentication = errors.New("authentication rejected")

	// ErrTimeWindow means the requested start/end pair was validated and
	// rejected before any network call.
	ErrTimeWindow = errors.New("time window not bookable")

	// ErrThrottled is the platform-wide overload rejection of unofficial
	// clients. Fatal: retrying would make the overload worse.
	ErrThrottled = errors.New("platform overloaded, unofficial client rejected")

	// ErrSeatUnavailable means the seat was taken between search and reserve,
	// or the account already holds a reservation. The search loop treats it
	// as "pick another seat".
	ErrSeatUnavailable = errors.New("seat unavailable or reservation already held")

	// ErrNoActiveReservation means there was nothing to release.
	ErrNoActiveReservation = errors.New("no active reservation")
)

// MalformedTimeError signals unparseable clock input, as opposed to a
// well-formed window that merely fails validation.
type MalformedTimeError struct {
	Input string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time %q (want HH:MM)", e.Input)
}

// TransientSearchError wraps network-layer or server-error failures of the
// free-seat search. Callers retry with backoff.
type TransientSearchError struct {
	Err error
}

func (e *TransientSearchError) Error() string {
	return fmt.Sprintf("transient search failure: %v", e.Err)
}

func (e *TransientSearchError) Unwrap() error { return e.Err }

// IsTransientSearch reports whether err should be retried by the search loop.
func IsTransientSearch(err error) bool {
	var t *TransientSearchError
	return errors.As(err, &t)
}

// ReleaseFailedError means cancel/stop-using did not report success; no
// re-reserve was attempted and the old reservation is presumed still held.
// Err is set when the failure was a transport error rather than an explicit
// rejection.
type ReleaseFailedError struct {
	Reservation Reservation
	Err         error
}

func (e *ReleaseFailedError) Error() string {
	msg := fmt.Sprintf("release of reservation %s (seat %s, status %s) failed; reservation still held",
		e.Reservation.ID, e.Reservation.SeatID, e.Reservation.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReleaseFailedError) Unwrap() error { return e.Err }

// ReacquisitionFailedError means the release succeeded but the follow-up
// reserve of the same seat did not: the old reservation is gone.
type ReacquisitionFailedError struct {
	SeatID string
	Err    error
}

func (e *ReacquisitionFailedError) Error() string {
	return fmt.Sprintf("seat %s released but not reacquired: %v", e.SeatID, e.Err)
}

func (e *ReacquisitionFailedError) Unwrap() error { return e.Err }
