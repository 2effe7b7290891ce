// Package timeslot validates requested reservation windows against the
// platform's slot rules and decides which date a run books for.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

// Clock is a time of day in minutes since midnight.
type Clock int

const (
	// Open and Close are the platform's daily bookable bounds.
	Open  Clock = 8 * 60
	Close Clock = 22*60 + 30

	// Cutover is the start of the last bookable slot of the day. Once the
	// wall clock passes it, new reservations target tomorrow.
	Cutover Clock = 22 * 60

	// LatenessGrace lets a window whose start just slipped into the past
	// still validate, so a slot starting "right now" stays bookable.
	LatenessGrace = 30 * time.Minute
)

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseClock parses "HH:MM". Unparseable input is a MalformedTimeError;
// out-of-range values (25:00) are malformed too, not merely invalid.
func ParseClock(s string) (Clock, error) {
	h, m, ok := splitClock(s)
	if !ok {
		return 0, &reservation.MalformedTimeError{Input: s}
	}
	return Clock(h*60 + m), nil
}

func splitClock(s string) (h, m int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func clockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Validate reports whether the (start, end) pair is bookable for the target
// day. Merely-invalid windows return false with a nil error; only unparseable
// input produces an error.
func Validate(start, end string, isTomorrow bool, now time.Time) (bool, error) {
	s, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return false, err
	}
	if e <= s {
		return false, nil
	}
	if s < Open || e > Close {
		return false, nil
	}
	if !isTomorrow {
		grace := Clock(LatenessGrace / time.Minute)
		if s+grace < clockOf(now) {
			return false, nil
		}
	}
	return true, nil
}

// ComputeReserveDate decides the target date for this run: past the last
// bookable slot of today, the date rolls to tomorrow. Called once per run
// and cached by the caller.
func ComputeReserveDate(now time.Time) (date string, isTomorrow bool) {
	day := now
	if clockOf(now) >= Cutover {
		day = now.AddDate(0, 0, 1)
		isTomorrow = true
	}
	return day.Format("2006-01-02"), isTomorrow
}

// GateDelay is how long the search loop should wait before its first search:
// the distance to the requested start minus margin, never negative. Tomorrow
// targets are bookable immediately.
func GateDelay(start string, isTomorrow bool, now time.Time, margin time.Duration) (time.Duration, error) {
	if isTomorrow {
		return 0, nil
	}
	s, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	startAt := time.Date(now.Year(), now.Month(), now.Day(), int(s)/60, int(s)%60, 0, 0, now.Location())
	d := startAt.Sub(now) - margin
	if d < 0 {
		d = 0
	}
	return d, nil
}
