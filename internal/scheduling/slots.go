// Package scheduling turns working hours and booked appointments into
// bookable slots.
package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"tabibdesk/internal/model"
)

const DateLayout = "2006-01-02"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps treats intervals as half-open, so back-to-back visits do not clash.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts lowercase or capitalized English day names.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

func WeekdayName(d time.Weekday) string { return strings.ToLower(d.String()) }

// Default is Saturday through Thursday, morning and evening shifts, Friday off.
func Default() model.Schedule {
	shifts := []model.Shift{{Start: "09:00", End: "13:00"}, {Start: "17:00", End: "21:00"}}
	days := map[time.Weekday][]model.Shift{}
	for _, d := range []time.Weekday{time.Saturday, time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday} {
		days[d] = append([]model.Shift(nil), shifts...)
	}
	return model.Schedule{SlotMinutes: 20, Days: days}
}

// ParseClock reads "HH:MM" as minutes after midnight. "24:00" is allowed as a shift end.
func ParseClock(s string) (int, error) {
	var h, m int
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

func Validate(s model.Schedule) error {
	if s.SlotMinutes < 5 || s.SlotMinutes > 240 {
		return errors.New("slot length must be between 5 and 240 minutes")
	}
	for day, shifts := range s.Days {
		spans, err := minutes(shifts)
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		for i, sp := range spans {
			if sp[0] >= sp[1] {
				return fmt.Errorf("%s: shift %d ends before it starts", day, i+1)
			}
			if i > 0 && spans[i-1][1] > sp[0] {
				return fmt.Errorf("%s: shifts overlap", day)
			}
		}
	}
	return nil
}

// minutes converts shifts to sorted [start,end] minute pairs.
func minutes(shifts []model.Shift) ([][2]int, error) {
	out := make([][2]int, 0, len(shifts))
	for _, sh := range shifts {
		a, err := ParseClock(sh.Start)
		if err != nil {
			return nil, err
		}
		b, err := ParseClock(sh.End)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]int{a, b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

// ParseDate reads a YYYY-MM-DD day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// DayBounds returns local midnight of day and of the following day.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// Slots lays the schedule for day's weekday out in fixed steps. A slot never
// crosses its shift end; it is unavailable when it starts before now or
// overlaps any busy interval.
func Slots(s model.Schedule, day time.Time, loc *time.Location, busy []Interval, now time.Time) ([]Slot, error) {
	if s.SlotMinutes <= 0 {
		return nil, errors.New("slot length must be positive")
	}
	local := day.In(loc)
	y, mo, d := local.Date()
	spans, err := minutes(s.Days[local.Weekday()])
	if err != nil {
		return nil, err
	}

	var out []Slot
	for _, sp := range spans {
		for m := sp[0]; m+s.SlotMinutes <= sp[1]; m += s.SlotMinutes {
			slot := Slot{
				Start: time.Date(y, mo, d, 0, m, 0, 0, loc),
				End:   time.Date(y, mo, d, 0, m+s.SlotMinutes, 0, 0, loc),
			}
			slot.Available = !slot.Start.Before(now) && !clashes(Interval{slot.Start, slot.End}, busy)
			out = append(out, slot)
		}
	}
	return out, nil
}

func clashes(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
