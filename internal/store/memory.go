package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabibdesk/internal/model"
	"tabibdesk/internal/textsearch"
)

// Memory keeps every clinic in process memory. It is the default backend and
// what the tests run against. Records are copied in and out so callers never
// share state with the store.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	clinics      map[string]*model.Clinic
	users        map[string]*model.User
	tokens       map[string]*model.RefreshToken
	patients     map[string]*model.Patient
	appointments map[string]*model.Appointment
	schedules    map[string]*model.DoctorSchedule
	invoices     map[string]*model.Invoice
	invoiceSeq   map[string]int
	payments     map[string]*model.Payment
	vendors      map[string]*model.Vendor
	expenses     map[string]*model.Expense
	tasks        map[string]*model.Task
	activity     []*model.ActivityEvent
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		clinics:      map[string]*model.Clinic{},
		users:        map[string]*model.User{},
		tokens:       map[string]*model.RefreshToken{},
		patients:     map[string]*model.Patient{},
		appointments: map[string]*model.Appointment{},
		schedules:    map[string]*model.DoctorSchedule{},
		invoices:     map[string]*model.Invoice{},
		invoiceSeq:   map[string]int{},
		payments:     map[string]*model.Payment{},
		vendors:      map[string]*model.Vendor{},
		expenses:     map[string]*model.Expense{},
		tasks:        map[string]*model.Task{},
	}
}

func (m *Memory) Close() {}

func (m *Memory) stamp(created, updated *time.Time) {
	now := m.now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ----- clinics & users -----

func (m *Memory) CreateClinic(_ context.Context, c *model.Clinic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clinics[c.ID]; ok {
		return ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	cp := *c
	m.clinics[c.ID] = &cp
	return nil
}

func (m *Memory) GetClinic(_ context.Context, id string) (*model.Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if strings.EqualFold(x.Email, u.Email) {
			return ErrConflict
		}
	}
	m.stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUser(_ context.Context, clinicID, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok || u.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) ListUsers(_ context.Context, clinicID string, role model.Role) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.User
	for _, u := range m.users {
		if u.ClinicID != clinicID || (role != "" && u.Role != role) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := textsearch.Compare(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ----- refresh tokens -----

func (m *Memory) CreateRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.tokens[id] = &model.RefreshToken{
		ID: id, UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: m.now().UTC(),
	}
	return id, nil
}

func (m *Memory) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RotateRefreshToken(_ context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tokens[oldID]
	if !ok || old.Revoked {
		return ErrNotFound
	}
	old.Revoked = true
	old.ReplacedBy = &newID
	m.tokens[newID] = &model.RefreshToken{
		ID: newID, UserID: userID, TokenHash: newHash, ExpiresAt: newExpiry, CreatedAt: m.now().UTC(),
	}
	return nil
}

func (m *Memory) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

// ----- patients -----

func clonePatient(p *model.Patient) *model.Patient {
	cp := *p
	cp.Allergies = append([]string(nil), p.Allergies...)
	cp.DateOfBirth = copyTime(p.DateOfBirth)
	cp.LastVisitAt = copyTime(p.LastVisitAt)
	return &cp
}

func (m *Memory) phoneTaken(p *model.Patient) bool {
	d := textsearch.Digits(p.Phone)
	if d == "" {
		return false
	}
	for _, x := range m.patients {
		if x.ClinicID == p.ClinicID && x.ID != p.ID && textsearch.Digits(x.Phone) == d {
			return true
		}
	}
	return false
}

func (m *Memory) CreatePatient(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; ok || m.phoneTaken(p) {
		return ErrConflict
	}
	m.stamp(&p.CreatedAt, &p.UpdatedAt)
	m.patients[p.ID] = clonePatient(p)
	return nil
}

func (m *Memory) GetPatient(_ context.Context, clinicID, id string) (*model.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	return clonePatient(p), nil
}

func (m *Memory) UpdatePatient(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.patients[p.ID]
	if !ok || old.ClinicID != p.ClinicID {
		return ErrNotFound
	}
	if m.phoneTaken(p) {
		return ErrConflict
	}
	p.CreatedAt = old.CreatedAt
	m.stamp(&p.CreatedAt, &p.UpdatedAt)
	m.patients[p.ID] = clonePatient(p)
	return nil
}

func (m *Memory) DeactivateStalePatient(_ context.Context, clinicID, id string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID || p.Status != model.PatientActive || !lastSeen(p).Before(cutoff) {
		return false, nil
	}
	p.Status = model.PatientInactive
	m.stamp(&p.CreatedAt, &p.UpdatedAt)
	return true, nil
}

func (m *Memory) DeletePatient(_ context.Context, clinicID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || p.ClinicID != clinicID {
		return ErrNotFound
	}
	delete(m.patients, id)
	for _, t := range m.tasks {
		if t.ClinicID == clinicID && t.PatientID == id {
			t.PatientID = ""
		}
	}
	return nil
}

func lastSeen(p *model.Patient) time.Time {
	if p.LastVisitAt != nil {
		return *p.LastVisitAt
	}
	return p.CreatedAt
}

func (m *Memory) ListPatients(_ context.Context, clinicID string, f PatientFilter) ([]model.Patient, int, error) {
	m.mu.RLock()
	var out []model.Patient
	for _, p := range m.patients {
		if p.ClinicID != clinicID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if !f.VisitBefore.IsZero() && !lastSeen(p).Before(f.VisitBefore) {
			continue
		}
		if !textsearch.Match(f.Query, p.Phone, p.FirstName, p.LastName, p.FullName(), p.Email) {
			continue
		}
		out = append(out, *clonePatient(p))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		switch f.Sort {
		case SortName:
			if c := textsearch.Compare(a.FullName(), b.FullName()); c != 0 {
				return c < 0
			}
		case SortLastVisit:
			switch {
			case a.LastVisitAt != nil && b.LastVisitAt == nil:
				return true
			case a.LastVisitAt == nil && b.LastVisitAt != nil:
				return false
			case a.LastVisitAt != nil && !a.LastVisitAt.Equal(*b.LastVisitAt):
				return a.LastVisitAt.After(*b.LastVisitAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
	return paginate(out, f.Page), len(out), nil
}

// ----- appointments -----

func (m *Memory) overlaps(clinicID, doctorID string, start, end time.Time, excludeID string) bool {
	for _, a := range m.appointments {
		if a.ClinicID != clinicID || a.DoctorID != doctorID || a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			return true
		}
	}
	return false
}

func (m *Memory) CreateAppointment(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[a.ID]; ok {
		return ErrConflict
	}
	if a.Status.Blocking() && m.overlaps(a.ClinicID, a.DoctorID, a.StartTime, a.EndTime, a.ID) {
		return ErrConflict
	}
	m.stamp(&a.CreatedAt, &a.UpdatedAt)
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *Memory) GetAppointment(_ context.Context, clinicID, id string) (*model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) UpdateAppointment(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.appointments[a.ID]
	if !ok || old.ClinicID != a.ClinicID {
		return ErrNotFound
	}
	if a.Status.Blocking() && m.overlaps(a.ClinicID, a.DoctorID, a.StartTime, a.EndTime, a.ID) {
		return ErrConflict
	}
	a.CreatedAt = old.CreatedAt
	m.stamp(&a.CreatedAt, &a.UpdatedAt)
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *Memory) HasOverlap(_ context.Context, clinicID, doctorID string, start, end time.Time, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlaps(clinicID, doctorID, start, end, excludeID), nil
}

func statusIn(s model.AppointmentStatus, set []model.AppointmentStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func (m *Memory) ListAppointments(_ context.Context, clinicID string, f AppointmentFilter) ([]model.Appointment, int, error) {
	m.mu.RLock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.ClinicID != clinicID ||
			(f.DoctorID != "" && a.DoctorID != f.DoctorID) ||
			(f.PatientID != "" && a.PatientID != f.PatientID) ||
			!statusIn(a.Status, f.Statuses) ||
			!inRange(a.StartTime, f.From, f.To) {
			continue
		}
		out = append(out, *a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), len(out), nil
}

// ----- schedules -----

func scheduleKey(clinicID, doctorID string) string { return clinicID + "/" + doctorID }

func cloneSchedule(s *model.DoctorSchedule) *model.DoctorSchedule {
	cp := *s
	cp.Schedule.Days = make(map[time.Weekday][]model.Shift, len(s.Schedule.Days))
	for d, shifts := range s.Schedule.Days {
		cp.Schedule.Days[d] = append([]model.Shift(nil), shifts...)
	}
	return &cp
}

func (m *Memory) GetDoctorSchedule(_ context.Context, clinicID, doctorID string) (*model.DoctorSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[scheduleKey(clinicID, doctorID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSchedule(s), nil
}

func (m *Memory) PutDoctorSchedule(_ context.Context, s *model.DoctorSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now().UTC()
	m.schedules[scheduleKey(s.ClinicID, s.DoctorID)] = cloneSchedule(s)
	return nil
}

// ----- activity -----

func (m *Memory) AppendActivity(_ context.Context, e *model.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now().UTC()
	}
	cp := *e
	m.activity = append(m.activity, &cp)
	return nil
}

func (m *Memory) ListActivity(_ context.Context, clinicID string, f ActivityFilter) ([]model.ActivityEvent, int, error) {
	m.mu.RLock()
	var out []model.ActivityEvent
	// newest first; insertion order breaks timestamp ties
	for i := len(m.activity) - 1; i >= 0; i-- {
		e := m.activity[i]
		if e.ClinicID != clinicID ||
			(f.EntityType != "" && e.EntityType != f.EntityType) ||
			(f.EntityID != "" && e.EntityID != f.EntityID) ||
			(f.ActorID != "" && e.ActorID != f.ActorID) ||
			!inRange(e.CreatedAt, f.From, f.To) {
			continue
		}
		out = append(out, *e)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page), len(out), nil
}

func invoiceNumber(year, seq int) string { return fmt.Sprintf("INV-%d-%04d", year, seq) }
