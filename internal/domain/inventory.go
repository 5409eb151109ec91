package domain

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultTotalSeats seeds a seat map when a flight carries no usable count.
const DefaultTotalSeats = 40

var (
	narrowBodyColumns = []string{"A", "B", "C", "D"}
	wideBodyColumns   = []string{"A", "B", "C", "D", "E", "F"}
)

// NormalizeSeatNumber trims and upper-cases a seat number. Every seat number
// is normalized before it is compared or stored.
func NormalizeSeatNumber(seatNumber string) string {
	return strings.ToUpper(strings.TrimSpace(seatNumber))
}

func seatColumns(totalSeats int) []string {
	if totalSeats >= 90 || totalSeats%6 == 0 {
		return wideBodyColumns
	}
	return narrowBodyColumns
}

// BuildSeatMap lays out totalSeats free seats row by row, starting at row 1.
func BuildSeatMap(totalSeats int) []Seat {
	if totalSeats <= 0 {
		totalSeats = DefaultTotalSeats
	}
	columns := seatColumns(totalSeats)
	seats := make([]Seat, 0, totalSeats)
	for row := 1; len(seats) < totalSeats; row++ {
		for _, column := range columns {
			if len(seats) >= totalSeats {
				break
			}
			seats = append(seats, Seat{SeatNumber: strconv.Itoa(row) + column})
		}
	}
	return seats
}

// EnsureSeats materializes the seat map if the flight has none and reports
// whether it did. A populated map is left untouched. A new map is entirely
// free, so AvailableSeats is reset to match it.
func (f *Flight) EnsureSeats() bool {
	if len(f.seats) > 0 {
		return false
	}
	seed := f.TotalSeats
	if seed <= 0 {
		seed = f.AvailableSeats
	}
	if seed <= 0 {
		seed = DefaultTotalSeats
	}
	f.seats = BuildSeatMap(seed)
	f.TotalSeats = seed
	f.RecomputeAvailable()
	return true
}

// LoadSeats restores a persisted seat map. Seat numbers are normalized;
// AvailableSeats is not touched.
func (f *Flight) LoadSeats(seats []Seat) {
	if len(seats) == 0 {
		f.seats = nil
		return
	}
	f.seats = make([]Seat, len(seats))
	for i, s := range seats {
		f.seats[i] = Seat{SeatNumber: NormalizeSeatNumber(s.SeatNumber), IsBooked: s.IsBooked}
	}
}

// Seats returns a copy of the seat map in layout order.
func (f *Flight) Seats() []Seat {
	return append([]Seat(nil), f.seats...)
}

func (f *Flight) FindSeat(seatNumber string) (Seat, bool) {
	if i := f.seatIndex(seatNumber); i >= 0 {
		return f.seats[i], true
	}
	return Seat{}, false
}

func (f *Flight) seatIndex(seatNumber string) int {
	n := NormalizeSeatNumber(seatNumber)
	for i := range f.seats {
		if f.seats[i].SeatNumber == n {
			return i
		}
	}
	return -1
}

// FreeSeats returns the unbooked seats ordered by seat number.
func (f *Flight) FreeSeats() []Seat {
	free := make([]Seat, 0, len(f.seats))
	for _, s := range f.seats {
		if !s.IsBooked {
			free = append(free, s)
		}
	}
	sort.SliceStable(free, func(i, j int) bool {
		return LessSeatNumber(free[i].SeatNumber, free[j].SeatNumber)
	})
	return free
}

// Reserve books every listed seat. If any seat is unknown or already booked
// the call fails and nothing changes.
func (f *Flight) Reserve(seatNumbers []string) error {
	idx := make([]int, 0, len(seatNumbers))
	seen := make(map[int]struct{}, len(seatNumbers))
	for _, sn := range seatNumbers {
		i := f.seatIndex(sn)
		if i < 0 {
			return NotFoundf("seat %s not found on flight %d", NormalizeSeatNumber(sn), f.ID)
		}
		if f.seats[i].IsBooked {
			return Conflictf("seat %s already booked on flight %d", f.seats[i].SeatNumber, f.ID)
		}
		if _, dup := seen[i]; dup {
			return Conflictf("seat %s requested twice", f.seats[i].SeatNumber)
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	for _, i := range idx {
		f.seats[i].IsBooked = true
	}
	return nil
}

// Release frees every listed seat. Unknown and blank seat numbers are
// skipped.
func (f *Flight) Release(seatNumbers []string) {
	for _, sn := range seatNumbers {
		if NormalizeSeatNumber(sn) == "" {
			continue
		}
		if i := f.seatIndex(sn); i >= 0 {
			f.seats[i].IsBooked = false
		}
	}
}

func (f *Flight) RecomputeAvailable() {
	free := 0
	for _, s := range f.seats {
		if !s.IsBooked {
			free++
		}
	}
	f.AvailableSeats = free
}

// LessSeatNumber orders seat numbers by row, then column ("2A" < "10A").
// Numbers that do not parse as row+column compare lexically after those
// that do.
func LessSeatNumber(a, b string) bool {
	ra, ca, okA := splitSeatNumber(a)
	rb, cb, okB := splitSeatNumber(b)
	switch {
	case okA && okB:
		if ra != rb {
			return ra < rb
		}
		return ca < cb
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

func splitSeatNumber(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, "", false
	}
	row, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", false
	}
	return row, s[i:], true
}
