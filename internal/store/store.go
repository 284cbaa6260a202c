// Package store persists clinic records. Every read and write is scoped by
// clinic id; a record of another clinic is reported as ErrNotFound.
package store

import (
	"context"
	"errors"
	"time"

	"tabibdesk/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict covers unique violations and overlapping bookings.
	ErrConflict = errors.New("conflict")
)

type Store interface {
	CreateClinic(ctx context.Context, c *model.Clinic) error
	GetClinic(ctx context.Context, id string) (*model.Clinic, error)

	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUser(ctx context.Context, clinicID, id string) (*model.User, error)
	// UserByID is unscoped; only token refresh uses it.
	UserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, clinicID string, role model.Role) ([]model.User, error)

	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error

	CreatePatient(ctx context.Context, p *model.Patient) error
	GetPatient(ctx context.Context, clinicID, id string) (*model.Patient, error)
	UpdatePatient(ctx context.Context, p *model.Patient) error
	DeletePatient(ctx context.Context, clinicID, id string) error
	ListPatients(ctx context.Context, clinicID string, f PatientFilter) ([]model.Patient, int, error)
	// DeactivateStalePatient flips an active patient to inactive only if their
	// last visit (or creation) is still before cutoff. Reports whether it did.
	DeactivateStalePatient(ctx context.Context, clinicID, id string, cutoff time.Time) (bool, error)

	// CreateAppointment fails with ErrConflict when a blocking appointment of
	// the same doctor overlaps, even if HasOverlap raced.
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, clinicID, id string) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	ListAppointments(ctx context.Context, clinicID string, f AppointmentFilter) ([]model.Appointment, int, error)
	HasOverlap(ctx context.Context, clinicID, doctorID string, start, end time.Time, excludeID string) (bool, error)

	GetDoctorSchedule(ctx context.Context, clinicID, doctorID string) (*model.DoctorSchedule, error)
	PutDoctorSchedule(ctx context.Context, s *model.DoctorSchedule) error

	// CreateInvoice assigns the next INV-<year>-<seq> number of the clinic.
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoice(ctx context.Context, clinicID, id string) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *model.Invoice) error
	ListInvoices(ctx context.Context, clinicID string, f InvoiceFilter) ([]model.Invoice, int, error)
	CountPatientInvoices(ctx context.Context, clinicID, patientID string) (int, error)

	// SavePayments inserts add, deletes removeIDs and writes inv in one step.
	SavePayments(ctx context.Context, inv *model.Invoice, add []model.Payment, removeIDs []string) error
	GetPayment(ctx context.Context, clinicID, id string) (*model.Payment, error)
	ListPayments(ctx context.Context, clinicID string, f PaymentFilter) ([]model.Payment, int, error)

	CreateVendor(ctx context.Context, v *model.Vendor) error
	GetVendor(ctx context.Context, clinicID, id string) (*model.Vendor, error)
	UpdateVendor(ctx context.Context, v *model.Vendor) error
	DeleteVendor(ctx context.Context, clinicID, id string) error
	ListVendors(ctx context.Context, clinicID string, f VendorFilter) ([]model.Vendor, int, error)

	CreateExpense(ctx context.Context, e *model.Expense) error
	GetExpense(ctx context.Context, clinicID, id string) (*model.Expense, error)
	UpdateExpense(ctx context.Context, e *model.Expense) error
	DeleteExpense(ctx context.Context, clinicID, id string) error
	ListExpenses(ctx context.Context, clinicID string, f ExpenseFilter) ([]model.Expense, int, error)
	CountVendorExpenses(ctx context.Context, clinicID, vendorID string) (int, error)

	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, clinicID, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, clinicID, id string) error
	ListTasks(ctx context.Context, clinicID string, f TaskFilter) ([]model.Task, int, error)

	AppendActivity(ctx context.Context, e *model.ActivityEvent) error
	ListActivity(ctx context.Context, clinicID string, f ActivityFilter) ([]model.ActivityEvent, int, error)

	Close()
}

// Page is 1-based. A zero Size returns everything.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Size <= 0 || p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// paginate slices one page out of an already filtered and sorted list.
func paginate[T any](items []T, p Page) []T {
	if p.Size <= 0 {
		return items
	}
	lo := p.offset()
	if lo >= len(items) {
		return nil
	}
	hi := min(lo+p.Size, len(items))
	return items[lo:hi]
}

const (
	SortName      = "name"
	SortNewest    = "-created"
	SortLastVisit = "-last_visit"
)

type PatientFilter struct {
	Query  string
	Status model.PatientStatus
	Sort   string
	// VisitBefore keeps active patients whose last visit (or creation, when
	// they never visited) is before it.
	VisitBefore time.Time
	Page        Page
}

// Time bounds below are half-open: From inclusive, To exclusive, zero means unbounded.

type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Statuses  []model.AppointmentStatus
	From      time.Time
	To        time.Time
	Page      Page
}

type InvoiceFilter struct {
	PatientID string
	Status    model.InvoiceStatus
	// Open keeps unpaid and partially paid invoices.
	Open bool
	From time.Time
	To   time.Time
	Page Page
}

type PaymentFilter struct {
	InvoiceID string
	PatientID string
	From      time.Time
	To        time.Time
	Page      Page
}

type VendorFilter struct {
	Query string
	Page  Page
}

type ExpenseFilter struct {
	VendorID string
	Category model.ExpenseCategory
	From     time.Time
	To       time.Time
	Page     Page
}

type TaskFilter struct {
	AssigneeID string
	PatientID  string
	Status     model.TaskStatus
	// OpenOnly drops done tasks; OverdueAt, when set, keeps tasks due before it.
	OpenOnly  bool
	OverdueAt time.Time
	Page      Page
}

type ActivityFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	From       time.Time
	To         time.Time
	Page       Page
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
