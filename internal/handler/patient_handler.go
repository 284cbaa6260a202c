package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/scheduling"
	"tabibdesk/internal/store"
	"tabibdesk/internal/textsearch"
)

const minPhoneDigits = 6

// applyPatient validates f and copies it onto p.
func (h *Handler) applyPatient(p *model.Patient, f rpc.PatientFields) error {
	first := strings.TrimSpace(f.FirstName)
	phone := strings.TrimSpace(f.Phone)
	if first == "" || phone == "" {
		return apperr.Invalid("first name and phone required")
	}
	if len(textsearch.Digits(phone)) < minPhoneDigits {
		return apperr.Invalid("phone must contain at least 6 digits")
	}
	email := normEmail(f.Email)
	if email != "" && !validEmail(email) {
		return apperr.Invalid("invalid email")
	}

	p.DateOfBirth = nil
	if f.DateOfBirth != "" {
		dob, err := scheduling.ParseDate(f.DateOfBirth, time.UTC)
		if err != nil {
			return apperr.Invalid("date of birth must be YYYY-MM-DD")
		}
		if dob.After(h.now()) {
			return apperr.Invalid("date of birth is in the future")
		}
		p.DateOfBirth = &dob
	}

	var allergies []string
	for _, a := range f.Allergies {
		if a = strings.TrimSpace(a); a != "" {
			allergies = append(allergies, a)
		}
	}

	p.FirstName = first
	p.LastName = strings.TrimSpace(f.LastName)
	p.Phone = phone
	p.Email = email
	p.Gender = strings.TrimSpace(f.Gender)
	p.Address = strings.TrimSpace(f.Address)
	p.Notes = f.Notes
	p.Allergies = allergies
	return nil
}

// CreatePatient registers a patient. New patients start inactive until their
// first visit.
func (h *Handler) CreatePatient(ctx context.Context, req *rpc.CreatePatientRequest) (*rpc.Patient, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	p := &model.Patient{ID: newID(), ClinicID: c.ClinicID, Status: model.PatientInactive}
	if err := h.applyPatient(p, req.PatientFields); err != nil {
		return nil, err
	}
	if err := h.store.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("a patient with this phone already exists")
		}
		return nil, apperr.Internal(err)
	}
	h.record(ctx, c, "patient", p.ID, "created", "Registered patient "+p.FullName())
	return toPatient(p), nil
}

func (h *Handler) GetPatient(ctx context.Context, req *rpc.IDRequest) (*rpc.Patient, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	p, err := h.store.GetPatient(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}
	return toPatient(p), nil
}

func (h *Handler) UpdatePatient(ctx context.Context, req *rpc.UpdatePatientRequest) (*rpc.Patient, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	p, err := h.store.GetPatient(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}
	if err := h.applyPatient(p, req.PatientFields); err != nil {
		return nil, err
	}
	if err := h.store.UpdatePatient(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("a patient with this phone already exists")
		}
		return nil, storeErr(err, "Patient")
	}
	h.record(ctx, c, "patient", p.ID, "updated", "Updated patient "+p.FullName())
	return toPatient(p), nil
}

// DeletePatient refuses patients with billing or visit history.
func (h *Handler) DeletePatient(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	p, err := h.store.GetPatient(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}

	n, err := h.store.CountPatientInvoices(ctx, c.ClinicID, p.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n > 0 {
		return nil, apperr.Precondition("patient has invoices")
	}
	_, appts, err := h.store.ListAppointments(ctx, c.ClinicID, store.AppointmentFilter{PatientID: p.ID, Page: store.Page{Size: 1}})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if appts > 0 {
		return nil, apperr.Precondition("patient has appointments")
	}

	if err := h.store.DeletePatient(ctx, c.ClinicID, p.ID); err != nil {
		return nil, storeErr(err, "Patient")
	}
	h.record(ctx, c, "patient", p.ID, "deleted", "Deleted patient "+p.FullName())
	return &rpc.Empty{}, nil
}

func (h *Handler) ListPatients(ctx context.Context, req *rpc.ListPatientsRequest) (*rpc.ListPatientsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	st := model.PatientStatus(req.Status)
	if st != "" && !st.Valid() {
		return nil, apperr.Invalid("unknown patient status")
	}
	switch req.Sort {
	case "", store.SortName, store.SortNewest, store.SortLastVisit:
	default:
		return nil, apperr.Invalid("unknown sort")
	}

	ps, total, err := h.store.ListPatients(ctx, c.ClinicID, store.PatientFilter{
		Query:  strings.TrimSpace(req.Query),
		Status: st,
		Sort:   req.Sort,
		Page:   page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Patient, len(ps))
	for i := range ps {
		out[i] = toPatient(&ps[i])
	}
	return &rpc.ListPatientsResponse{Patients: out, Total: int32(total)}, nil
}

// SetPatientStatus applies a manual lifecycle action.
func (h *Handler) SetPatientStatus(ctx context.Context, req *rpc.SetPatientStatusRequest) (*rpc.Patient, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" || req.Action == "" {
		return nil, apperr.Invalid("id and action required")
	}
	p, err := h.store.GetPatient(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}
	next, err := model.PatientAction(req.Action).Apply(p.Status)
	if err != nil {
		return nil, apperr.Precondition(fmt.Sprintf("%v: cannot %s a patient who is %s", err, req.Action, p.Status))
	}
	p.Status = next
	if err := h.store.UpdatePatient(ctx, p); err != nil {
		return nil, storeErr(err, "Patient")
	}
	h.record(ctx, c, "patient", p.ID, "status_changed", p.FullName()+" is now "+string(next))
	return toPatient(p), nil
}

// ReconcilePatientStatuses deactivates active patients who have not visited
// within the window.
func (h *Handler) ReconcilePatientStatuses(ctx context.Context, req *rpc.ReconcilePatientStatusesRequest) (*rpc.ReconcilePatientStatusesResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	days := int(req.InactiveAfterDays)
	if days < 0 {
		return nil, apperr.Invalid("inactive window must be positive")
	}
	if days == 0 {
		days = h.inactiveDays
	}
	cutoff := h.now().AddDate(0, 0, -days)

	stale, _, err := h.store.ListPatients(ctx, c.ClinicID, store.PatientFilter{
		Status:      model.PatientActive,
		VisitBefore: cutoff,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// a visit recorded since the list is honored by the guarded update
	var changed int32
	for i := range stale {
		ok, err := h.store.DeactivateStalePatient(ctx, c.ClinicID, stale[i].ID, cutoff)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if ok {
			changed++
		}
	}
	if changed > 0 {
		h.record(ctx, c, "clinic", c.ClinicID, "patients_reconciled", fmt.Sprintf("%d patients marked inactive", changed))
	}
	return &rpc.ReconcilePatientStatusesResponse{Changed: changed}, nil
}

// markVisit stamps a visit and activates an inactive patient.
func (h *Handler) markVisit(ctx context.Context, c middleware.Principal, patientID string) error {
	p, err := h.store.GetPatient(ctx, c.ClinicID, patientID)
	if err != nil {
		return storeErr(err, "Patient")
	}
	now := h.now().UTC()
	if p.LastVisitAt == nil || p.LastVisitAt.Before(now) {
		p.LastVisitAt = &now
	}
	activated := false
	if p.Status == model.PatientInactive {
		p.Status = model.PatientActive
		activated = true
	}
	if err := h.store.UpdatePatient(ctx, p); err != nil {
		return storeErr(err, "Patient")
	}
	if activated {
		h.record(ctx, c, "patient", p.ID, "status_changed", p.FullName()+" is now active")
	}
	return nil
}

func toPatient(p *model.Patient) *rpc.Patient {
	out := &rpc.Patient{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		FullName:    p.FullName(),
		Phone:       p.Phone,
		Email:       p.Email,
		Gender:      p.Gender,
		Address:     p.Address,
		Notes:       p.Notes,
		Allergies:   p.Allergies,
		Status:      string(p.Status),
		LastVisitAt: tsPtr(p.LastVisitAt),
		CreatedAt:   ts(p.CreatedAt),
		UpdatedAt:   ts(p.UpdatedAt),
	}
	if p.DateOfBirth != nil {
		out.DateOfBirth = p.DateOfBirth.Format(scheduling.DateLayout)
	}
	return out
}
