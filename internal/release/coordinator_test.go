package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

type fakeApp struct {
	current    *reservation.Reservation
	currentErr error

	cancelOK  bool
	cancelErr error
	stopOK    bool
	stopErr   error

	cancelCalls []string
	stopCalls   int
}

func (f *fakeApp) CurrentReservation(ctx context.Context) (*reservation.Reservation, error) {
	return f.current, f.currentErr
}

func (f *fakeApp) Cancel(ctx context.Context, id string) (bool, error) {
	f.cancelCalls = append(f.cancelCalls, id)
	return f.cancelOK, f.cancelErr
}

func (f *fakeApp) StopUsing(ctx context.Context) (bool, error) {
	f.stopCalls++
	return f.stopOK, f.stopErr
}

type fakeWeb struct {
	out reservation.Outcome
	err error

	calls []string
}

func (f *fakeWeb) Reserve(ctx context.Context, seatID, start, end string) (reservation.Outcome, error) {
	f.calls = append(f.calls, seatID)
	return f.out, f.err
}

func held(status reservation.Status) *reservation.Reservation {
	return &reservation.Reservation{
		ID:       "R1",
		SeatID:   "S7",
		Status:   status,
		Location: "E1-201-077",
		Begin:    "09:00",
		End:      "11:00",
		Date:     "2024-03-12",
	}
}

func newCoordinator(app *fakeApp, web *fakeWeb) *Coordinator {
	return &Coordinator{App: app, Web: web, Settle: time.Millisecond}
}

func TestRunFailsWithoutActiveReservation(t *testing.T) {
	app := &fakeApp{}
	web := &fakeWeb{}
	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	assert.ErrorIs(t, err, reservation.ErrNoActiveReservation)
	assert.Empty(t, web.calls)
}

func TestRunCancelsWhenReserved(t *testing.T) {
	app := &fakeApp{current: held(reservation.StatusReserved), cancelOK: true}
	web := &fakeWeb{out: reservation.Outcome{ReservationID: "R2", SeatID: "S7"}}

	out, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, app.cancelCalls)
	assert.Zero(t, app.stopCalls)
	assert.Equal(t, []string{"S7"}, web.calls, "must rebook the same seat")
	assert.Equal(t, "R2", out.ReservationID)
}

func TestRunStopsUsingWhenCheckedIn(t *testing.T) {
	app := &fakeApp{current: held(reservation.StatusInUse), stopOK: true}
	web := &fakeWeb{out: reservation.Outcome{ReservationID: "R2"}}

	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, 1, app.stopCalls)
	assert.Empty(t, app.cancelCalls)
}

func TestRunStopsWhenReleaseRejected(t *testing.T) {
	app := &fakeApp{current: held(reservation.StatusInUse), stopOK: false}
	web := &fakeWeb{}

	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	var rf *reservation.ReleaseFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "R1", rf.Reservation.ID)
	assert.Empty(t, web.calls, "reserve must never run after a failed release")
}

func TestRunStopsWhenReleaseErrors(t *testing.T) {
	app := &fakeApp{current: held(reservation.StatusReserved), cancelErr: errors.New("timeout")}
	web := &fakeWeb{}

	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	var rf *reservation.ReleaseFailedError
	require.ErrorAs(t, err, &rf)
	assert.EqualError(t, rf.Err, "timeout")
	assert.Empty(t, web.calls)
}

func TestRunReportsReacquisitionFailure(t *testing.T) {
	app := &fakeApp{current: held(reservation.StatusReserved), cancelOK: true}
	web := &fakeWeb{err: errors.New("seat gone")}

	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	var rq *reservation.ReacquisitionFailedError
	require.ErrorAs(t, err, &rq)
	assert.Equal(t, "S7", rq.SeatID)
	assert.Equal(t, []string{"S7"}, web.calls)
}

func TestRunPropagatesQueryError(t *testing.T) {
	app := &fakeApp{currentErr: errors.New("network down")}
	web := &fakeWeb{}

	_, err := newCoordinator(app, web).Run(context.Background(), "09:00", "11:00")
	require.Error(t, err)
	assert.Empty(t, app.cancelCalls)
	assert.Empty(t, web.calls)
}
