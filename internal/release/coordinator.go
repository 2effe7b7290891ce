// Package release exchanges the account's existing reservation for a fresh
// booking of the same seat: inspect via the app channel, cancel or stop-using
// by status, then re-reserve through the web channel.
package release

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

// defaultSettle gives the platform a moment to reflect the release before
// the seat shows up as bookable again.
const defaultSettle = 800 * time.Millisecond

// AppChannel is the slice of the app client the coordinator needs.
type AppChannel interface {
	CurrentReservation(ctx context.Context) (*reservation.Reservation, error)
	Cancel(ctx context.Context, reservationID string) (bool, error)
	StopUsing(ctx context.Context) (bool, error)
}

// WebReserver is the slice of the web client the coordinator needs.
type WebReserver interface {
	Reserve(ctx context.Context, seatID, start, end string) (reservation.Outcome, error)
}

type Recorder interface {
	Record(ctx context.Context, action string, success bool, detail string)
}

// Coordinator runs the release-then-reacquire sequence. Each step is gated on
// the previous one: in particular no re-reserve is ever attempted unless the
// release reported success, so the account can never believe a reservation is
// both released and held.
type Coordinator struct {
	App AppChannel
	Web WebReserver

	Settle time.Duration

	Logger   *slog.Logger
	Recorder Recorder
}

// Run releases the current reservation and immediately rebooks the same seat
// for [start, end). A ReacquisitionFailedError means the release side effect
// already happened: the old reservation is gone and the caller may want to
// fall back to a fresh search.
func (c *Coordinator) Run(ctx context.Context, start, end string) (reservation.Outcome, error) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Settle <= 0 {
		c.Settle = defaultSettle
	}

	cur, err := c.App.CurrentReservation(ctx)
	if err != nil {
		return reservation.Outcome{}, fmt.Errorf("query current reservation: %w", err)
	}
	if cur == nil {
		return reservation.Outcome{}, reservation.ErrNoActiveReservation
	}
	c.Logger.Info("active reservation found",
		"reservation", cur.ID, "seat", cur.SeatID, "status", string(cur.Status),
		"location", cur.Location, "begin", cur.Begin, "end", cur.End)

	var released bool
	switch cur.Status {
	case reservation.StatusReserved:
		released, err = c.App.Cancel(ctx, cur.ID)
	case reservation.StatusInUse:
		released, err = c.App.StopUsing(ctx)
	default:
		return reservation.Outcome{}, fmt.Errorf("unknown reservation status %q", cur.Status)
	}
	if err != nil || !released {
		c.record(ctx, "release", false, cur.ID)
		return reservation.Outcome{}, &reservation.ReleaseFailedError{Reservation: *cur, Err: err}
	}
	c.Logger.Info("reservation released", "reservation", cur.ID, "seat", cur.SeatID)
	c.record(ctx, "release", true, cur.ID)

	if err := sleep(ctx, c.Settle); err != nil {
		// Released but interrupted before rebooking: the seat is gone.
		return reservation.Outcome{}, &reservation.ReacquisitionFailedError{SeatID: cur.SeatID, Err: err}
	}

	out, err := c.Web.Reserve(ctx, cur.SeatID, start, end)
	if err != nil {
		c.record(ctx, "reacquire", false, cur.SeatID)
		return reservation.Outcome{}, &reservation.ReacquisitionFailedError{SeatID: cur.SeatID, Err: err}
	}
	c.record(ctx, "reacquire", true, out.ReservationID)
	c.Logger.Info("seat reacquired", "reservation", out.ReservationID, "seat", cur.SeatID)
	return out, nil
}

func (c *Coordinator) record(ctx context.Context, action string, success bool, detail string) {
	if c.Recorder != nil {
		c.Recorder.Record(ctx, action, success, detail)
	}
}

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
