package reservation

// Status is the lifecycle state of a reservation as reported by the platform.
type Status string

const (
	// StatusReserved means booked but not yet checked in (wire value "RESERVE").
	StatusReserved Status = "RESERVE"
	// StatusInUse means the user has checked in at the seat (wire value "CHECK_IN").
	StatusInUse Status = "CHECK_IN"
)

// Seat is a free seat discovered by a search. Seats are transient: they are
// consumed by a reserve attempt in the same loop iteration or discarded.
type Seat struct {
	ID       string
	Location string
	Window   bool
	Power    bool
}

// Filter describes which seats are acceptable. Empty string / PrefAny fields
// are wildcards. A Filter is immutable for the duration of a run.
type Filter struct {
	Building  string
	Room      string
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	Window    Preference
	Power     Preference
}

// Preference is a tri-state seat attribute requirement.
type Preference int

const (
	PrefAny Preference = iota
	PrefYes
	PrefNo
)

func (p Preference) admits(v bool) bool {
	switch p {
	case PrefYes:
		return v
	case PrefNo:
		return !v
	default:
		return true
	}
}

// Admits reports whether the seat satisfies the filter's window/power
// preferences. Building/room/time narrowing happens server-side in the
// search request; this is the client-side residue.
func (f Filter) Admits(s Seat) bool {
	return f.Window.admits(s.Window) && f.Power.admits(s.Power)
}

// Reservation is the single active booking the account may hold.
type Reservation struct {
	ID       string
	SeatID   string
	Status   Status
	Location string
	Begin    string // "HH:MM"
	End      string // "HH:MM"
	Date     string // "2006-01-02"
}

// Outcome is the terminal result reported to the caller after a successful
// reserve or release-and-reacquire run.
type Outcome struct {
	ReservationID string
	SeatID        string
	Location      string
	Begin         string
	End           string
	Date          string
	Attempts      int
}
