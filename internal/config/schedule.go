package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tabibdesk/internal/model"
	"tabibdesk/internal/scheduling"
)

// scheduleFile is the on-disk clinic hours layout:
//
//	slot_minutes: 20
//	days:
//	  monday:
//	    - {start: "09:00", end: "13:00"}
type scheduleFile struct {
	SlotMinutes int                      `yaml:"slot_minutes"`
	Days        map[string][]model.Shift `yaml:"days"`
}

// LoadSchedule reads clinic hours from path, or returns the built-in default
// when path is empty.
func LoadSchedule(path string) (model.Schedule, error) {
	if path == "" {
		return scheduling.Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("read schedule: %w", err)
	}
	return ParseSchedule(b)
}

func ParseSchedule(b []byte) (model.Schedule, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return model.Schedule{}, fmt.Errorf("parse schedule: %w", err)
	}
	s := model.Schedule{SlotMinutes: f.SlotMinutes, Days: map[time.Weekday][]model.Shift{}}
	for name, shifts := range f.Days {
		d, ok := scheduling.ParseWeekday(name)
		if !ok {
			return model.Schedule{}, fmt.Errorf("parse schedule: unknown weekday %q", name)
		}
		s.Days[d] = shifts
	}
	if err := scheduling.Validate(s); err != nil {
		return model.Schedule{}, fmt.Errorf("parse schedule: %w", err)
	}
	return s, nil
}

// MarshalSchedule writes s in the same layout ParseSchedule reads.
func MarshalSchedule(s model.Schedule) ([]byte, error) {
	f := scheduleFile{SlotMinutes: s.SlotMinutes, Days: map[string][]model.Shift{}}
	for d, shifts := range s.Days {
		f.Days[scheduling.WeekdayName(d)] = shifts
	}
	return yaml.Marshal(f)
}
