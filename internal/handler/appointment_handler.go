package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/scheduling"
	"tabibdesk/internal/store"
)

var errOverlap = apperr.Conflict("time conflicts with existing appointment")

// doctor loads a user of the clinic and checks that they see patients.
func (h *Handler) doctor(ctx context.Context, clinicID, id string) (*model.User, error) {
	if id == "" {
		return nil, apperr.Invalid("doctor required")
	}
	u, err := h.store.GetUser(ctx, clinicID, id)
	if err != nil {
		return nil, storeErr(err, "Doctor")
	}
	if u.Role != model.RoleDoctor {
		return nil, apperr.Invalid("user is not a doctor")
	}
	return u, nil
}

// scheduleOf returns the doctor's hours, or the clinic default.
func (h *Handler) scheduleOf(ctx context.Context, clinicID, doctorID string) (model.Schedule, bool, error) {
	ds, err := h.store.GetDoctorSchedule(ctx, clinicID, doctorID)
	if errors.Is(err, store.ErrNotFound) {
		return h.schedule, true, nil
	}
	if err != nil {
		return model.Schedule{}, false, apperr.Internal(err)
	}
	return ds.Schedule, false, nil
}

func (h *Handler) CreateAppointment(ctx context.Context, req *rpc.CreateAppointmentRequest) (*rpc.Appointment, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.PatientID == "" {
		return nil, apperr.Invalid("patient required")
	}
	if req.StartTime == nil {
		return nil, apperr.Invalid("start time required")
	}

	pat, err := h.store.GetPatient(ctx, c.ClinicID, req.PatientID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}
	if pat.Status == model.PatientArchived {
		return nil, apperr.Precondition("patient is archived")
	}
	if _, err := h.doctor(ctx, c.ClinicID, req.DoctorID); err != nil {
		return nil, err
	}

	typ := model.AppointmentType(req.Type)
	if typ == "" {
		typ = model.TypeConsultation
	}
	if !typ.Valid() {
		return nil, apperr.Invalid("unknown appointment type")
	}

	start := req.StartTime.AsTime()
	end := timeOf(req.EndTime)
	if end.IsZero() {
		sched, _, err := h.scheduleOf(ctx, c.ClinicID, req.DoctorID)
		if err != nil {
			return nil, err
		}
		end = start.Add(time.Duration(sched.SlotMinutes) * time.Minute)
	}
	if err := h.checkTimes(start, end); err != nil {
		return nil, err
	}

	// app-level overlap check
	if dup, err := h.store.HasOverlap(ctx, c.ClinicID, req.DoctorID, start, end, ""); err != nil {
		return nil, apperr.Internal(err)
	} else if dup {
		return nil, errOverlap
	}

	apt := &model.Appointment{
		ID:        newID(),
		ClinicID:  c.ClinicID,
		PatientID: pat.ID,
		DoctorID:  req.DoctorID,
		StartTime: start,
		EndTime:   end,
		Type:      typ,
		Status:    model.StatusScheduled,
		Reason:    req.Reason,
		Notes:     req.Notes,
		CreatedBy: c.UserID,
	}
	if err := h.store.CreateAppointment(ctx, apt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// db exclusion constraint caught a race
			return nil, errOverlap
		}
		return nil, apperr.Internal(err)
	}

	h.record(ctx, c, "appointment", apt.ID, "created",
		fmt.Sprintf("Booked %s for %s", typ, pat.FullName()))
	return toAppointment(apt), nil
}

func (h *Handler) checkTimes(start, end time.Time) error {
	if !end.After(start) {
		return apperr.Invalid("end must be after start")
	}
	if start.Before(h.now().Add(-bookingGrace)) {
		return apperr.Invalid("cannot book in the past")
	}
	return nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *rpc.IDRequest) (*rpc.Appointment, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	apt, err := h.store.GetAppointment(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Appointment")
	}
	return toAppointment(apt), nil
}

// UpdateAppointment reschedules or edits an appointment that has not ended.
// Moving only the start keeps the duration.
func (h *Handler) UpdateAppointment(ctx context.Context, req *rpc.UpdateAppointmentRequest) (*rpc.Appointment, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	apt, err := h.store.GetAppointment(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Appointment")
	}
	if apt.Status.Terminal() {
		return nil, apperr.Precondition("appointment can no longer be changed")
	}

	moved := false
	if req.DoctorID != "" && req.DoctorID != apt.DoctorID {
		if _, err := h.doctor(ctx, c.ClinicID, req.DoctorID); err != nil {
			return nil, err
		}
		apt.DoctorID = req.DoctorID
		moved = true
	}
	if req.StartTime != nil || req.EndTime != nil {
		start, end := apt.StartTime, apt.EndTime
		if req.StartTime != nil {
			start = req.StartTime.AsTime()
			end = start.Add(apt.EndTime.Sub(apt.StartTime))
		}
		if req.EndTime != nil {
			end = req.EndTime.AsTime()
		}
		// a visit already under way may still be extended
		if !end.After(start) {
			return nil, apperr.Invalid("end must be after start")
		}
		if !start.Equal(apt.StartTime) {
			if err := h.checkTimes(start, end); err != nil {
				return nil, err
			}
		}
		apt.StartTime, apt.EndTime = start, end
		moved = true
	}
	if req.Type != "" {
		typ := model.AppointmentType(req.Type)
		if !typ.Valid() {
			return nil, apperr.Invalid("unknown appointment type")
		}
		apt.Type = typ
	}
	if req.Reason != nil {
		apt.Reason = *req.Reason
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}

	if moved {
		// exclude self from overlap check
		if dup, err := h.store.HasOverlap(ctx, c.ClinicID, apt.DoctorID, apt.StartTime, apt.EndTime, apt.ID); err != nil {
			return nil, apperr.Internal(err)
		} else if dup {
			return nil, errOverlap
		}
	}

	if err := h.store.UpdateAppointment(ctx, apt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errOverlap
		}
		return nil, storeErr(err, "Appointment")
	}
	action := "updated"
	if moved {
		action = "rescheduled"
	}
	h.record(ctx, c, "appointment", apt.ID, action, "Appointment "+action)
	return toAppointment(apt), nil
}

func (h *Handler) ListAppointments(ctx context.Context, req *rpc.ListAppointmentsRequest) (*rpc.ListAppointmentsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := store.AppointmentFilter{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		From:      timeOf(req.From),
		To:        timeOf(req.To),
		Page:      page(req.Page, req.PageSize),
	}
	for _, s := range req.Statuses {
		st := model.AppointmentStatus(s)
		if !st.Valid() {
			return nil, apperr.Invalid("unknown appointment status " + s)
		}
		f.Statuses = append(f.Statuses, st)
	}

	apts, total, err := h.store.ListAppointments(ctx, c.ClinicID, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Appointment, len(apts))
	for i := range apts {
		out[i] = toAppointment(&apts[i])
	}
	return &rpc.ListAppointmentsResponse{Appointments: out, Total: int32(total)}, nil
}

func (h *Handler) SetAppointmentStatus(ctx context.Context, req *rpc.SetAppointmentStatusRequest) (*rpc.Appointment, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	next := model.AppointmentStatus(req.Status)
	if !next.Valid() {
		return nil, apperr.Invalid("unknown appointment status")
	}
	return h.moveAppointment(ctx, c, req.ID, next, "")
}

func (h *Handler) CancelAppointment(ctx context.Context, req *rpc.CancelAppointmentRequest) (*rpc.Appointment, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	return h.moveAppointment(ctx, c, req.ID, model.StatusCancelled, req.Reason)
}

// moveAppointment walks the status flow. Check-in and completion count as a
// visit of the patient.
func (h *Handler) moveAppointment(ctx context.Context, c middleware.Principal, id string, next model.AppointmentStatus, reason string) (*rpc.Appointment, error) {
	apt, err := h.store.GetAppointment(ctx, c.ClinicID, id)
	if err != nil {
		return nil, storeErr(err, "Appointment")
	}
	if !apt.Status.CanMoveTo(next) {
		return nil, apperr.Precondition(fmt.Sprintf("cannot move appointment from %s to %s", apt.Status, next))
	}
	apt.Status = next
	if reason != "" {
		if apt.Notes != "" {
			apt.Notes += "\n"
		}
		apt.Notes += "Cancelled: " + reason
	}
	if err := h.store.UpdateAppointment(ctx, apt); err != nil {
		return nil, storeErr(err, "Appointment")
	}
	// the transition is saved; a failed visit stamp only warns
	if next.CountsAsVisit() {
		if err := h.markVisit(ctx, c, apt.PatientID); err != nil {
			h.log.Warn("visit stamp failed",
				zap.String("clinic", c.ClinicID),
				zap.String("appointment", apt.ID),
				zap.String("patient", apt.PatientID),
				zap.Error(err))
		}
	}
	h.record(ctx, c, "appointment", apt.ID, "status_changed", "Appointment is now "+string(next))
	return toAppointment(apt), nil
}

func (h *Handler) GetDoctorSchedule(ctx context.Context, req *rpc.GetDoctorScheduleRequest) (*rpc.DoctorSchedule, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.doctor(ctx, c.ClinicID, req.DoctorID); err != nil {
		return nil, err
	}
	s, isDefault, err := h.scheduleOf(ctx, c.ClinicID, req.DoctorID)
	if err != nil {
		return nil, err
	}
	return toSchedule(req.DoctorID, s, isDefault), nil
}

// SetDoctorSchedule is open to admins and to the doctor themselves.
func (h *Handler) SetDoctorSchedule(ctx context.Context, req *rpc.SetDoctorScheduleRequest) (*rpc.DoctorSchedule, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if c.Role != model.RoleAdmin && c.UserID != req.DoctorID {
		return nil, apperr.Forbidden("only admins or the doctor can change working hours")
	}
	doc, err := h.doctor(ctx, c.ClinicID, req.DoctorID)
	if err != nil {
		return nil, err
	}

	s := model.Schedule{SlotMinutes: int(req.SlotMinutes), Days: map[time.Weekday][]model.Shift{}}
	for name, shifts := range req.Days {
		d, ok := scheduling.ParseWeekday(name)
		if !ok {
			return nil, apperr.Invalid("unknown weekday " + name)
		}
		for _, sh := range shifts {
			s.Days[d] = append(s.Days[d], model.Shift{Start: sh.Start, End: sh.End})
		}
	}
	if err := scheduling.Validate(s); err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	if err := h.store.PutDoctorSchedule(ctx, &model.DoctorSchedule{ClinicID: c.ClinicID, DoctorID: doc.ID, Schedule: s}); err != nil {
		return nil, apperr.Internal(err)
	}
	h.record(ctx, c, "user", doc.ID, "schedule_updated", "Updated working hours of "+doc.Name)
	return toSchedule(doc.ID, s, false), nil
}

// AvailableSlots lays out one day of the doctor's hours in the clinic's
// timezone and marks booked or past slots unavailable.
func (h *Handler) AvailableSlots(ctx context.Context, req *rpc.AvailableSlotsRequest) (*rpc.AvailableSlotsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.doctor(ctx, c.ClinicID, req.DoctorID); err != nil {
		return nil, err
	}
	clinic, loc, err := h.clinic(ctx, c.ClinicID)
	if err != nil {
		return nil, err
	}
	day, err := scheduling.ParseDate(req.Date, loc)
	if err != nil {
		return nil, apperr.Invalid("date must be YYYY-MM-DD")
	}
	sched, _, err := h.scheduleOf(ctx, c.ClinicID, req.DoctorID)
	if err != nil {
		return nil, err
	}

	from, to := scheduling.DayBounds(day, loc)
	// a visit that began the evening before can still run into the day
	booked, _, err := h.store.ListAppointments(ctx, c.ClinicID, store.AppointmentFilter{
		DoctorID: req.DoctorID,
		Statuses: model.BlockingStatuses,
		From:     from.AddDate(0, 0, -1),
		To:       to,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	busy := make([]scheduling.Interval, len(booked))
	for i, a := range booked {
		busy[i] = scheduling.Interval{Start: a.StartTime, End: a.EndTime}
	}

	slots, err := scheduling.Slots(sched, day, loc, busy, h.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Slot, len(slots))
	for i, s := range slots {
		out[i] = &rpc.Slot{Start: ts(s.Start), End: ts(s.End), Available: s.Available}
	}
	return &rpc.AvailableSlotsResponse{Date: day.Format(scheduling.DateLayout), Timezone: clinic.Timezone, Slots: out}, nil
}

func toAppointment(a *model.Appointment) *rpc.Appointment {
	return &rpc.Appointment{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		StartTime: ts(a.StartTime),
		EndTime:   ts(a.EndTime),
		Type:      string(a.Type),
		Status:    string(a.Status),
		Reason:    a.Reason,
		Notes:     a.Notes,
		CreatedBy: a.CreatedBy,
		CreatedAt: ts(a.CreatedAt),
		UpdatedAt: ts(a.UpdatedAt),
	}
}

func toSchedule(doctorID string, s model.Schedule, isDefault bool) *rpc.DoctorSchedule {
	out := &rpc.DoctorSchedule{
		DoctorID:    doctorID,
		SlotMinutes: int32(s.SlotMinutes),
		Days:        map[string][]rpc.Shift{},
		IsDefault:   isDefault,
	}
	for d, shifts := range s.Days {
		for _, sh := range shifts {
			out.Days[scheduling.WeekdayName(d)] = append(out.Days[scheduling.WeekdayName(d)], rpc.Shift{Start: sh.Start, End: sh.End})
		}
	}
	return out
}
