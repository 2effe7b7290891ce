package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 12, hour, min, 0, 0, time.Local)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(510), c)
	assert.Equal(t, "08:30", c.String())

	for _, bad := range []string{"", "8am", "25:00", "12:60", "12", "a:b"} {
		_, err := ParseClock(bad)
		var mt *reservation.MalformedTimeError
		require.ErrorAs(t, err, &mt, "input %q", bad)
		assert.Equal(t, bad, mt.Input)
	}
}

func TestValidate(t *testing.T) {
	now := at(7, 0)

	tests := []struct {
		name       string
		start, end string
		isTomorrow bool
		now        time.Time
		want       bool
	}{
		{"morning window before open hours", "09:00", "11:00", false, now, true},
		{"end equals start", "09:00", "09:00", false, now, false},
		{"end before start", "11:00", "09:00", false, now, false},
		{"starts before open", "07:00", "11:00", false, now, false},
		{"ends after close", "20:00", "23:00", false, now, false},
		{"full day", "08:00", "22:30", false, now, true},
		{"start in the past today", "09:00", "11:00", false, at(12, 0), false},
		{"start just past, within grace", "09:00", "11:00", false, at(9, 20), true},
		{"past start fine for tomorrow", "09:00", "11:00", true, at(12, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.start, tt.end, tt.isTomorrow, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	_, err := Validate("nine", "11:00", false, at(7, 0))
	var mt *reservation.MalformedTimeError
	assert.ErrorAs(t, err, &mt)

	_, err = Validate("09:00", "eleven", false, at(7, 0))
	assert.ErrorAs(t, err, &mt)
}

func TestComputeReserveDate(t *testing.T) {
	date, tomorrow := ComputeReserveDate(at(9, 0))
	assert.Equal(t, "2024-03-12", date)
	assert.False(t, tomorrow)

	date, tomorrow = ComputeReserveDate(at(21, 59))
	assert.Equal(t, "2024-03-12", date)
	assert.False(t, tomorrow)

	date, tomorrow = ComputeReserveDate(at(22, 0))
	assert.Equal(t, "2024-03-13", date)
	assert.True(t, tomorrow)

	date, tomorrow = ComputeReserveDate(at(23, 30))
	assert.Equal(t, "2024-03-13", date)
	assert.True(t, tomorrow)
}

func TestGateDelay(t *testing.T) {
	d, err := GateDelay("14:00", false, at(12, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	// Start already close or past: no wait.
	d, err = GateDelay("12:10", false, at(12, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	// Tomorrow targets poll immediately.
	d, err = GateDelay("09:00", true, at(12, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	_, err = GateDelay("bogus", false, at(12, 0), 0)
	var mt *reservation.MalformedTimeError
	assert.ErrorAs(t, err, &mt)
}
