package model

import "errors"

var ErrBadTransition = errors.New("invalid status transition")

type PatientStatus string

const (
	PatientInactive PatientStatus = "inactive"
	PatientActive   PatientStatus = "active"
	PatientArchived PatientStatus = "archived"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case PatientInactive, PatientActive, PatientArchived:
		return true
	}
	return false
}

// PatientAction names a manual lifecycle step.
type PatientAction string

const (
	ActionActivate   PatientAction = "activate"
	ActionDeactivate PatientAction = "deactivate"
	ActionArchive    PatientAction = "archive"
	ActionRestore    PatientAction = "restore"
)

// Apply returns the status reached from s via a, or ErrBadTransition.
func (a PatientAction) Apply(s PatientStatus) (PatientStatus, error) {
	switch {
	case a == ActionActivate && s == PatientInactive:
		return PatientActive, nil
	case a == ActionDeactivate && s == PatientActive:
		return PatientInactive, nil
	case a == ActionArchive && (s == PatientInactive || s == PatientActive):
		return PatientArchived, nil
	case a == ActionRestore && s == PatientArchived:
		return PatientInactive, nil
	}
	return s, ErrBadTransition
}

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusCheckedIn  AppointmentStatus = "checked_in"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

var appointmentFlow = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusConfirmed, StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// BlockingStatuses occupy the doctor's calendar.
var BlockingStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s AppointmentStatus) Blocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// CountsAsVisit reports whether reaching s means the patient showed up.
func (s AppointmentStatus) CountsAsVisit() bool {
	return s == StatusCheckedIn || s == StatusCompleted
}

func (s AppointmentStatus) CanMoveTo(next AppointmentStatus) bool {
	for _, n := range appointmentFlow[s] {
		if n == next {
			return true
		}
	}
	return false
}
