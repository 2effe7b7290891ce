// Package searchloop polls the web channel for free seats and grabs one the
// moment it appears. The loop runs to completion on the caller's goroutine:
// it ends only with a booked seat, a fatal error, or context cancellation.
package searchloop

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/timeslot"
)

const (
	defaultInterval        = 3 * time.Second
	defaultJitter          = 2 * time.Second
	defaultGateMargin      = 30 * time.Minute
	defaultPreReserveDelay = time.Second
)

// Booker is the slice of the web channel the loop needs.
type Booker interface {
	Search(ctx context.Context, f reservation.Filter) ([]reservation.Seat, error)
	Reserve(ctx context.Context, seatID, start, end string) (reservation.Outcome, error)
}

// Recorder receives one entry per attempt. Implementations must tolerate
// being called often and must not fail the run.
type Recorder interface {
	Record(ctx context.Context, action string, success bool, detail string)
}

// Loop drives search-then-reserve until a seat is won. There is no attempt
// cap: the platform has no notion of giving up, so only a fatal error or the
// caller's context stops it.
type Loop struct {
	Web        Booker
	Filter     reservation.Filter
	IsTomorrow bool

	// Interval is the base delay between empty searches; Jitter adds up to
	// that much randomness so concurrent bots against the same endpoint
	// don't poll in lock-step.
	Interval time.Duration
	Jitter   time.Duration

	// GateMargin controls how long before the requested start time active
	// polling begins.
	GateMargin time.Duration

	// PreReserveDelay is the fixed pause between spotting a seat and trying
	// to book it.
	PreReserveDelay time.Duration

	Logger   *slog.Logger
	Recorder Recorder
}

// Run blocks until a seat is reserved or a fatal error occurs.
func (l *Loop) Run(ctx context.Context) (reservation.Outcome, error) {
	l.normalize()

	gate, err := timeslot.GateDelay(l.Filter.StartTime, l.IsTomorrow, time.Now(), l.GateMargin)
	if err != nil {
		return reservation.Outcome{}, err
	}
	if gate > 0 {
		l.Logger.Info("waiting before first search", "delay", gate.String())
		if err := sleep(ctx, gate); err != nil {
			return reservation.Outcome{}, err
		}
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return reservation.Outcome{}, err
		}
		attempt++

		seats, err := l.Web.Search(ctx, l.Filter)
		if err != nil {
			if reservation.IsTransientSearch(err) {
				l.Logger.Warn("search failed, will retry", "attempt", attempt, "err", err)
				l.record(ctx, "search", false, err.Error())
				if err := sleep(ctx, l.backoff()); err != nil {
					return reservation.Outcome{}, err
				}
				continue
			}
			// Authentication, throttling and malformed input all abort.
			return reservation.Outcome{}, err
		}

		if len(seats) == 0 {
			l.Logger.Info("no free seats", "attempt", attempt)
			l.record(ctx, "search", false, "no free seats")
			if err := sleep(ctx, l.backoff()); err != nil {
				return reservation.Outcome{}, err
			}
			continue
		}

		// Uniform random pick instead of the head of the list: other bots
		// race for the top seat.
		seat := seats[rand.Intn(len(seats))]
		l.Logger.Info("free seat found, attempting reserve",
			"attempt", attempt, "seat", seat.ID, "location", seat.Location, "candidates", len(seats))
		l.record(ctx, "search", true, seat.ID)

		if err := sleep(ctx, l.PreReserveDelay); err != nil {
			return reservation.Outcome{}, err
		}

		out, err := l.Web.Reserve(ctx, seat.ID, l.Filter.StartTime, l.Filter.EndTime)
		if err != nil {
			if errors.Is(err, reservation.ErrSeatUnavailable) {
				l.Logger.Info("lost the race for seat, searching again", "seat", seat.ID)
				l.record(ctx, "reserve", false, err.Error())
				continue
			}
			return reservation.Outcome{}, err
		}
		out.Attempts = attempt
		l.record(ctx, "reserve", true, out.ReservationID)
		return out, nil
	}
}

func (l *Loop) normalize() {
	if l.Interval <= 0 {
		l.Interval = defaultInterval
	}
	if l.Jitter < 0 {
		l.Jitter = defaultJitter
	}
	if l.GateMargin <= 0 {
		l.GateMargin = defaultGateMargin
	}
	if l.PreReserveDelay < 0 {
		l.PreReserveDelay = defaultPreReserveDelay
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
}

func (l *Loop) backoff() time.Duration {
	d := l.Interval
	if l.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(l.Jitter) + 1))
	}
	return d
}

func (l *Loop) record(ctx context.Context, action string, success bool, detail string) {
	if l.Recorder != nil {
		l.Recorder.Record(ctx, action, success, detail)
	}
}

// sleep waits d or until the context is done, whichever comes first. These
// sleeps are the loop's only suspension points, so cancellation is always
// observed before the next network call.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
