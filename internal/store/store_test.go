package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabibdesk/internal/model"
	"tabibdesk/internal/store"
)

// fixture is one clinic with a doctor and a patient.
type fixture struct {
	st      store.Store
	clinic  *model.Clinic
	doctor  *model.User
	patient *model.Patient
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	c := &model.Clinic{ID: uuid.New().String(), Name: "Nile Clinic", Timezone: "Africa/Cairo", Currency: "EGP"}
	require.NoError(t, st.CreateClinic(ctx, c))
	f := &fixture{st: st, clinic: c}
	f.doctor = f.addUser(t, model.RoleDoctor, "Dr. Salma")
	f.patient = f.addPatient(t, "Amira", "Hassan", "01001234567")
	return f
}

func (f *fixture) addUser(t *testing.T, role model.Role, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New().String(),
		ClinicID:     f.clinic.ID,
		Email:        fmt.Sprintf("user-%s@test.com", uuid.New().String()[:8]),
		PasswordHash: "x",
		Name:         name,
		Role:         role,
	}
	require.NoError(t, f.st.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) addPatient(t *testing.T, first, last, phone string) *model.Patient {
	t.Helper()
	p := &model.Patient{
		ID:        uuid.New().String(),
		ClinicID:  f.clinic.ID,
		FirstName: first,
		LastName:  last,
		Phone:     phone,
		Status:    model.PatientInactive,
	}
	require.NoError(t, f.st.CreatePatient(context.Background(), p))
	return p
}

func (f *fixture) appointment(doctorID string, start time.Time, d time.Duration) *model.Appointment {
	return &model.Appointment{
		ID:        uuid.New().String(),
		ClinicID:  f.clinic.ID,
		PatientID: f.patient.ID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(d),
		Type:      model.TypeConsultation,
		Status:    model.StatusScheduled,
		CreatedBy: doctorID,
	}
}

func (f *fixture) invoice(t *testing.T, issued time.Time, total int64) *model.Invoice {
	t.Helper()
	inv := &model.Invoice{
		ID:        uuid.New().String(),
		ClinicID:  f.clinic.ID,
		PatientID: f.patient.ID,
		Items:     []model.LineItem{{Description: "Consultation", Quantity: 1, UnitPrice: total}},
		Subtotal:  total,
		Total:     total,
		Status:    model.InvoiceUnpaid,
		IssuedAt:  issued,
	}
	require.NoError(t, f.st.CreateInvoice(context.Background(), inv))
	return inv
}

// runContract exercises the behavior every backend must share.
func runContract(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("clinic scoping", func(t *testing.T) { testClinicScoping(t, open(t)) })
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("refresh tokens", func(t *testing.T) { testRefreshTokens(t, open(t)) })
	t.Run("patient phone unique", func(t *testing.T) { testPatientPhoneUnique(t, open(t)) })
	t.Run("list patients", func(t *testing.T) { testListPatients(t, open(t)) })
	t.Run("appointment overlap", func(t *testing.T) { testAppointmentOverlap(t, open(t)) })
	t.Run("doctor schedule", func(t *testing.T) { testDoctorSchedule(t, open(t)) })
	t.Run("invoice numbering", func(t *testing.T) { testInvoiceNumbering(t, open(t)) })
	t.Run("save payments", func(t *testing.T) { testSavePayments(t, open(t)) })
	t.Run("vendors and expenses", func(t *testing.T) { testVendorsExpenses(t, open(t)) })
	t.Run("task order", func(t *testing.T) { testTaskOrder(t, open(t)) })
	t.Run("activity", func(t *testing.T) { testActivity(t, open(t)) })
}

func testClinicScoping(t *testing.T, st store.Store) {
	ctx := context.Background()
	a := newFixture(t, st)
	b := newFixture(t, st)

	_, err := st.GetPatient(ctx, b.clinic.ID, a.patient.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	stolen := *a.patient
	stolen.ClinicID = b.clinic.ID
	stolen.FirstName = "Mallory"
	require.ErrorIs(t, st.UpdatePatient(ctx, &stolen), store.ErrNotFound)
	require.ErrorIs(t, st.DeletePatient(ctx, b.clinic.ID, a.patient.ID), store.ErrNotFound)

	got, err := st.GetPatient(ctx, a.clinic.ID, a.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amira", got.FirstName)

	list, total, err := st.ListPatients(ctx, b.clinic.ID, store.PatientFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, b.patient.ID, list[0].ID)

	_, err = st.GetUser(ctx, b.clinic.ID, a.doctor.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	f.addUser(t, model.RoleReceptionist, "Yara")
	f.addUser(t, model.RoleDoctor, "Dr. Adel")

	dup := *f.doctor
	dup.ID = uuid.New().String()
	require.ErrorIs(t, st.CreateUser(ctx, &dup), store.ErrConflict)

	u, err := st.UserByEmail(ctx, strings.ToUpper(f.doctor.Email))
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, u.ID)

	doctors, err := st.ListUsers(ctx, f.clinic.ID, model.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Dr. Adel", doctors[0].Name)
	assert.Equal(t, "Dr. Salma", doctors[1].Name)

	all, err := st.ListUsers(ctx, f.clinic.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testRefreshTokens(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	exp := time.Now().Add(time.Hour)

	oldID, err := st.CreateRefreshToken(ctx, f.doctor.ID, "hash-old-"+f.clinic.ID, exp)
	require.NoError(t, err)

	newID := uuid.New().String()
	require.NoError(t, st.RotateRefreshToken(ctx, oldID, newID, f.doctor.ID, "hash-new-"+f.clinic.ID, exp))

	old, err := st.GetRefreshTokenByHash(ctx, "hash-old-"+f.clinic.ID)
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, newID, *old.ReplacedBy)

	err = st.RotateRefreshToken(ctx, oldID, uuid.New().String(), f.doctor.ID, "hash-again-"+f.clinic.ID, exp)
	require.ErrorIs(t, err, store.ErrNotFound)

	u, err := st.UserByID(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, f.clinic.ID, u.ClinicID)

	fresh, err := st.GetRefreshTokenByHash(ctx, "hash-new-"+f.clinic.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Revoked)

	require.NoError(t, st.RevokeAllRefreshTokens(ctx, f.doctor.ID))
	fresh, err = st.GetRefreshTokenByHash(ctx, "hash-new-"+f.clinic.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Revoked)

	_, err = st.GetRefreshTokenByHash(ctx, "missing-"+f.clinic.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testPatientPhoneUnique(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)

	dup := &model.Patient{
		ID: uuid.New().String(), ClinicID: f.clinic.ID, FirstName: "Other",
		Phone: "010 0123 4567", Status: model.PatientInactive,
	}
	require.ErrorIs(t, st.CreatePatient(ctx, dup), store.ErrConflict)

	// the same number is fine in another clinic
	g := newFixture(t, st)
	assert.Equal(t, f.patient.Phone, g.patient.Phone)

	other := f.addPatient(t, "Mona", "Adel", "01112223334")
	other.Phone = "01001234567"
	require.ErrorIs(t, st.UpdatePatient(ctx, other), store.ErrConflict)
}

func testListPatients(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	f.addPatient(t, "Omar", "Khaled", "01223334445")
	mona := f.addPatient(t, "Mona", "Adel", "01112223334")

	list, total, err := st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{Sort: store.SortName})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	var names []string
	for _, p := range list {
		names = append(names, p.FirstName)
	}
	assert.Equal(t, []string{"Amira", "Mona", "Omar"}, names)

	list, total, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{Query: "MON"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, mona.ID, list[0].ID)

	list, _, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{Query: "2223"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mona.ID, list[0].ID)

	list, total, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{
		Sort: store.SortName, Page: store.Page{Number: 2, Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Omar", list[0].FirstName)

	mona.Status = model.PatientActive
	visit := time.Now().Add(-time.Hour)
	mona.LastVisitAt = &visit
	require.NoError(t, st.UpdatePatient(ctx, mona))

	list, _, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{Status: model.PatientActive})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mona.ID, list[0].ID)
	require.NotNil(t, list[0].LastVisitAt)
	assert.WithinDuration(t, visit, *list[0].LastVisitAt, time.Millisecond)

	list, _, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{Sort: store.SortLastVisit})
	require.NoError(t, err)
	assert.Equal(t, mona.ID, list[0].ID)

	list, _, err = st.ListPatients(ctx, f.clinic.ID, store.PatientFilter{
		Status: model.PatientActive, VisitBefore: visit.Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Empty(t, list)

	// the visit is newer than the cutoff
	ok, err := st.DeactivateStalePatient(ctx, f.clinic.ID, mona.ID, visit.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.DeactivateStalePatient(ctx, f.clinic.ID, mona.ID, visit.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := st.GetPatient(ctx, f.clinic.ID, mona.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientInactive, got.Status)
	require.NotNil(t, got.LastVisitAt)
	assert.WithinDuration(t, visit, *got.LastVisitAt, time.Millisecond)

	ok, err = st.DeactivateStalePatient(ctx, f.clinic.ID, mona.ID, visit.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "already inactive")
}

func testAppointmentOverlap(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	other := f.addUser(t, model.RoleDoctor, "Dr. Adel")
	start := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

	first := f.appointment(f.doctor.ID, start, time.Hour)
	require.NoError(t, st.CreateAppointment(ctx, first))

	clash := f.appointment(f.doctor.ID, start.Add(-30*time.Minute), time.Hour)
	require.ErrorIs(t, st.CreateAppointment(ctx, clash), store.ErrConflict)

	ok, err := st.HasOverlap(ctx, f.clinic.ID, f.doctor.ID, clash.StartTime, clash.EndTime, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.HasOverlap(ctx, f.clinic.ID, f.doctor.ID, first.StartTime, first.EndTime, first.ID)
	require.NoError(t, err)
	assert.False(t, ok, "an appointment does not overlap itself")

	// back to back and other doctors are fine
	require.NoError(t, st.CreateAppointment(ctx, f.appointment(f.doctor.ID, start.Add(time.Hour), time.Hour)))
	require.NoError(t, st.CreateAppointment(ctx, f.appointment(other.ID, start, time.Hour)))

	// cancelled appointments free the slot
	first.Status = model.StatusCancelled
	require.NoError(t, st.UpdateAppointment(ctx, first))
	require.NoError(t, st.CreateAppointment(ctx, clash))

	// reactivating into a taken slot is refused
	first.Status = model.StatusScheduled
	require.ErrorIs(t, st.UpdateAppointment(ctx, first), store.ErrConflict)

	list, total, err := st.ListAppointments(ctx, f.clinic.ID, store.AppointmentFilter{DoctorID: f.doctor.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].StartTime.Before(list[i-1].StartTime))
	}

	list, _, err = st.ListAppointments(ctx, f.clinic.ID, store.AppointmentFilter{
		Statuses: []model.AppointmentStatus{model.StatusCancelled},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	list, _, err = st.ListAppointments(ctx, f.clinic.ID, store.AppointmentFilter{
		From: start.Add(time.Hour), To: start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func testDoctorSchedule(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)

	_, err := st.GetDoctorSchedule(ctx, f.clinic.ID, f.doctor.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	ds := &model.DoctorSchedule{
		ClinicID: f.clinic.ID,
		DoctorID: f.doctor.ID,
		Schedule: model.Schedule{
			SlotMinutes: 30,
			Days: map[time.Weekday][]model.Shift{
				time.Sunday:  {{Start: "09:00", End: "13:00"}},
				time.Tuesday: {{Start: "10:00", End: "12:00"}, {Start: "16:00", End: "20:00"}},
			},
		},
	}
	require.NoError(t, st.PutDoctorSchedule(ctx, ds))

	got, err := st.GetDoctorSchedule(ctx, f.clinic.ID, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.Schedule, got.Schedule)

	ds.Schedule.SlotMinutes = 15
	require.NoError(t, st.PutDoctorSchedule(ctx, ds))
	got, err = st.GetDoctorSchedule(ctx, f.clinic.ID, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Schedule.SlotMinutes)
}

func testInvoiceNumbering(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	g := newFixture(t, st)

	a := f.invoice(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), 1000)
	b := f.invoice(t, time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC), 2000)
	c := f.invoice(t, time.Date(2027, 1, 1, 10, 0, 0, 0, time.UTC), 3000)
	d := g.invoice(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), 1000)

	assert.Equal(t, "INV-2026-0001", a.Number)
	assert.Equal(t, "INV-2026-0002", b.Number)
	assert.Equal(t, "INV-2027-0001", c.Number)
	assert.Equal(t, "INV-2026-0001", d.Number)

	// the number survives updates that try to change it
	b.Number = "INV-2026-9999"
	b.Notes = "late"
	require.NoError(t, st.UpdateInvoice(ctx, b))
	got, err := st.GetInvoice(ctx, f.clinic.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0002", got.Number)
	assert.Equal(t, "late", got.Notes)
	assert.Equal(t, b.Items, got.Items)

	list, total, err := st.ListInvoices(ctx, f.clinic.ID, store.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, a.ID, list[2].ID)

	n, err := st.CountPatientInvoices(ctx, f.clinic.ID, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testSavePayments(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	inv := f.invoice(t, time.Now().UTC(), 1000)
	other := f.invoice(t, time.Now().UTC(), 500)

	pay := func(invID string, amount int64) model.Payment {
		return model.Payment{
			ID: uuid.New().String(), ClinicID: f.clinic.ID, InvoiceID: invID, PatientID: f.patient.ID,
			Amount: amount, Method: model.MethodCash, PaidAt: time.Now().UTC(), CreatedBy: f.doctor.ID,
		}
	}

	p1 := pay(inv.ID, 400)
	inv.AmountPaid = 400
	inv.Status = model.InvoicePartiallyPaid
	require.NoError(t, st.SavePayments(ctx, inv, []model.Payment{p1}, nil))

	op := pay(other.ID, 500)
	other.AmountPaid = 500
	other.Status = model.InvoicePaid
	require.NoError(t, st.SavePayments(ctx, other, []model.Payment{op}, nil))

	// a payment of another invoice cannot be removed through this one
	inv.AmountPaid = 0
	inv.Status = model.InvoiceUnpaid
	require.ErrorIs(t, st.SavePayments(ctx, inv, nil, []string{op.ID}), store.ErrNotFound)

	got, err := st.GetInvoice(ctx, f.clinic.ID, inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 400, got.AmountPaid)
	assert.Equal(t, model.InvoicePartiallyPaid, got.Status)

	list, total, err := st.ListPayments(ctx, f.clinic.ID, store.PaymentFilter{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, p1.ID, list[0].ID)

	require.NoError(t, st.SavePayments(ctx, inv, nil, []string{p1.ID}))
	_, err = st.GetPayment(ctx, f.clinic.ID, p1.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err = st.GetInvoice(ctx, f.clinic.ID, inv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.AmountPaid)

	_, total, err = st.ListPayments(ctx, f.clinic.ID, store.PaymentFilter{PatientID: f.patient.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func testVendorsExpenses(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)

	v := &model.Vendor{ID: uuid.New().String(), ClinicID: f.clinic.ID, Name: "MedSupply", Category: "supplies"}
	require.NoError(t, st.CreateVendor(ctx, v))
	w := &model.Vendor{ID: uuid.New().String(), ClinicID: f.clinic.ID, Name: "Cairo Power", Category: "utilities"}
	require.NoError(t, st.CreateVendor(ctx, w))

	list, total, err := st.ListVendors(ctx, f.clinic.ID, store.VendorFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Cairo Power", list[0].Name)

	list, _, err = st.ListVendors(ctx, f.clinic.ID, store.VendorFilter{Query: "supply"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e1 := &model.Expense{ID: uuid.New().String(), ClinicID: f.clinic.ID, VendorID: v.ID,
		Category: model.ExpenseSupplies, Amount: 1500, IncurredAt: at, CreatedBy: f.doctor.ID}
	e2 := &model.Expense{ID: uuid.New().String(), ClinicID: f.clinic.ID,
		Category: model.ExpenseRent, Amount: 9000, IncurredAt: at.Add(24 * time.Hour), CreatedBy: f.doctor.ID}
	require.NoError(t, st.CreateExpense(ctx, e1))
	require.NoError(t, st.CreateExpense(ctx, e2))

	n, err := st.CountVendorExpenses(ctx, f.clinic.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exps, total, err := st.ListExpenses(ctx, f.clinic.ID, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, e2.ID, exps[0].ID)
	assert.Empty(t, exps[0].VendorID)

	exps, _, err = st.ListExpenses(ctx, f.clinic.ID, store.ExpenseFilter{Category: model.ExpenseSupplies})
	require.NoError(t, err)
	require.Len(t, exps, 1)

	e1.Amount = 1700
	require.NoError(t, st.UpdateExpense(ctx, e1))
	got, err := st.GetExpense(ctx, f.clinic.ID, e1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1700, got.Amount)

	require.NoError(t, st.DeleteExpense(ctx, f.clinic.ID, e1.ID))
	require.NoError(t, st.DeleteVendor(ctx, f.clinic.ID, v.ID))
	_, err = st.GetVendor(ctx, f.clinic.ID, v.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.DeleteExpense(ctx, f.clinic.ID, e1.ID), store.ErrNotFound)
}

func testTaskOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)
	today := time.Now().UTC().Truncate(time.Second)
	tomorrow := today.Add(24 * time.Hour)

	mk := func(title string, prio model.TaskPriority, due *time.Time) *model.Task {
		task := &model.Task{
			ID: uuid.New().String(), ClinicID: f.clinic.ID, Title: title, AssigneeID: f.doctor.ID,
			Priority: prio, Status: model.TaskTodo, DueAt: due, CreatedBy: f.doctor.ID,
		}
		require.NoError(t, st.CreateTask(ctx, task))
		return task
	}
	mk("call lab", model.PriorityNormal, &tomorrow)
	mk("order gloves", model.PriorityLow, &today)
	mk("renew license", model.PriorityHigh, nil)
	urgent := mk("sign reports", model.PriorityHigh, &today)

	list, _, err := st.ListTasks(ctx, f.clinic.ID, store.TaskFilter{})
	require.NoError(t, err)
	var titles []string
	for _, task := range list {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"sign reports", "order gloves", "call lab", "renew license"}, titles)

	urgent.Status = model.TaskDone
	done := time.Now().UTC()
	urgent.CompletedAt = &done
	require.NoError(t, st.UpdateTask(ctx, urgent))

	list, total, err := st.ListTasks(ctx, f.clinic.ID, store.TaskFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	list, _, err = st.ListTasks(ctx, f.clinic.ID, store.TaskFilter{OverdueAt: today.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "order gloves", list[0].Title)

	require.NoError(t, st.DeleteTask(ctx, f.clinic.ID, urgent.ID))
	_, err = st.GetTask(ctx, f.clinic.ID, urgent.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testActivity(t *testing.T, st store.Store) {
	ctx := context.Background()
	f := newFixture(t, st)

	for _, action := range []string{"created", "updated", "archived"} {
		require.NoError(t, st.AppendActivity(ctx, &model.ActivityEvent{
			ClinicID: f.clinic.ID, ActorID: f.doctor.ID, EntityType: "patient",
			EntityID: f.patient.ID, Action: action,
		}))
	}
	require.NoError(t, st.AppendActivity(ctx, &model.ActivityEvent{
		ClinicID: f.clinic.ID, ActorID: f.doctor.ID, EntityType: "task", EntityID: "t1", Action: "created",
	}))

	list, total, err := st.ListActivity(ctx, f.clinic.ID, store.ActivityFilter{EntityType: "patient"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "archived", list[0].Action)
	assert.Equal(t, "created", list[2].Action)
	assert.NotEmpty(t, list[0].ID)

	list, _, err = st.ListActivity(ctx, f.clinic.ID, store.ActivityFilter{Page: store.Page{Number: 1, Size: 1}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "task", list[0].EntityType)
}
