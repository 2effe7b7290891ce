package reservation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAdmits(t *testing.T) {
	seat := Seat{ID: "1", Window: true, Power: false}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"wildcards", Filter{}, true},
		{"window required, has window", Filter{Window: PrefYes}, true},
		{"no window required, has window", Filter{Window: PrefNo}, false},
		{"power required, no power", Filter{Power: PrefYes}, false},
		{"no power required, no power", Filter{Power: PrefNo}, true},
		{"both match", Filter{Window: PrefYes, Power: PrefNo}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Admits(seat))
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	tse := &TransientSearchError{Err: errors.New("http 502")}
	assert.True(t, IsTransientSearch(fmt.Errorf("search: %w", tse)))
	assert.False(t, IsTransientSearch(ErrThrottled))
	assert.False(t, IsTransientSearch(nil))

	rq := &ReacquisitionFailedError{SeatID: "S1", Err: ErrSeatUnavailable}
	assert.ErrorIs(t, rq, ErrSeatUnavailable)
	assert.Contains(t, rq.Error(), "S1")

	rf := &ReleaseFailedError{Reservation: Reservation{ID: "R1", SeatID: "S1", Status: StatusReserved}}
	assert.Contains(t, rf.Error(), "still held")
}
