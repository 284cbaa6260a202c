package rpc

import "google.golang.org/protobuf/types/known/timestamppb"

// Timestamps travel as {"seconds": ..., "nanos": ...}. Calendar dates
// (birth dates, slot days) are "YYYY-MM-DD" strings.

type Empty struct{}

type IDRequest struct {
	ID string `json:"id"`
}

// ----- auth -----

type RegisterRequest struct {
	ClinicName string `json:"clinicName"`
	Timezone   string `json:"timezone,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type User struct {
	ID        string                 `json:"id"`
	ClinicID  string                 `json:"clinicId"`
	Email     string                 `json:"email"`
	Name      string                 `json:"name"`
	Role      string                 `json:"role"`
	CreatedAt *timestamppb.Timestamp `json:"createdAt,omitempty"`
}

type Clinic struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type AuthResponse struct {
	AccessToken      string                 `json:"accessToken"`
	AccessExpiresAt  *timestamppb.Timestamp `json:"accessExpiresAt"`
	RefreshToken     string                 `json:"refreshToken"`
	RefreshExpiresAt *timestamppb.Timestamp `json:"refreshExpiresAt"`
	User             *User                  `json:"user"`
	Clinic           *Clinic                `json:"clinic"`
}

type AddStaffRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ListStaffRequest struct {
	Role string `json:"role,omitempty"`
}

type ListStaffResponse struct {
	Staff []*User `json:"staff"`
}

// ----- patients -----

type Patient struct {
	ID          string                 `json:"id"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName,omitempty"`
	FullName    string                 `json:"fullName"`
	Phone       string                 `json:"phone"`
	Email       string                 `json:"email,omitempty"`
	DateOfBirth string                 `json:"dateOfBirth,omitempty"`
	Gender      string                 `json:"gender,omitempty"`
	Address     string                 `json:"address,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	Allergies   []string               `json:"allergies,omitempty"`
	Status      string                 `json:"status"`
	LastVisitAt *timestamppb.Timestamp `json:"lastVisitAt,omitempty"`
	CreatedAt   *timestamppb.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *timestamppb.Timestamp `json:"updatedAt,omitempty"`
}

type PatientFields struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName,omitempty"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email,omitempty"`
	DateOfBirth string   `json:"dateOfBirth,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Address     string   `json:"address,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
}

type CreatePatientRequest struct {
	PatientFields
}

type UpdatePatientRequest struct {
	ID string `json:"id"`
	PatientFields
}

type ListPatientsRequest struct {
	Query    string `json:"query,omitempty"`
	Status   string `json:"status,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Page     int32  `json:"page,omitempty"`
	PageSize int32  `json:"pageSize,omitempty"`
}

type ListPatientsResponse struct {
	Patients []*Patient `json:"patients"`
	Total    int32      `json:"total"`
}

type SetPatientStatusRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type ReconcilePatientStatusesRequest struct {
	InactiveAfterDays int32 `json:"inactiveAfterDays,omitempty"`
}

type ReconcilePatientStatusesResponse struct {
	Changed int32 `json:"changed"`
}

// ----- appointments -----

type Appointment struct {
	ID        string                 `json:"id"`
	PatientID string                 `json:"patientId"`
	DoctorID  string                 `json:"doctorId"`
	StartTime *timestamppb.Timestamp `json:"startTime"`
	EndTime   *timestamppb.Timestamp `json:"endTime"`
	Type      string                 `json:"type"`
	Status    string                 `json:"status"`
	Reason    string                 `json:"reason,omitempty"`
	Notes     string                 `json:"notes,omitempty"`
	CreatedBy string                 `json:"createdBy"`
	CreatedAt *timestamppb.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt *timestamppb.Timestamp `json:"updatedAt,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID string                 `json:"patientId"`
	DoctorID  string                 `json:"doctorId"`
	StartTime *timestamppb.Timestamp `json:"startTime"`
	EndTime   *timestamppb.Timestamp `json:"endTime,omitempty"`
	Type      string                 `json:"type,omitempty"`
	// Reason and Notes are left alone when absent; an empty string clears.
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	ID        string                 `json:"id"`
	DoctorID  string                 `json:"doctorId,omitempty"`
	StartTime *timestamppb.Timestamp `json:"startTime,omitempty"`
	EndTime   *timestamppb.Timestamp `json:"endTime,omitempty"`
	Type      string                 `json:"type,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Notes     string                 `json:"notes,omitempty"`
}

type ListAppointmentsRequest struct {
	DoctorID  string                 `json:"doctorId,omitempty"`
	PatientID string                 `json:"patientId,omitempty"`
	Statuses  []string               `json:"statuses,omitempty"`
	From      *timestamppb.Timestamp `json:"from,omitempty"`
	To        *timestamppb.Timestamp `json:"to,omitempty"`
	Page      int32                  `json:"page,omitempty"`
	PageSize  int32                  `json:"pageSize,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Total        int32          `json:"total"`
}

type SetAppointmentStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CancelAppointmentRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type Shift struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DoctorSchedule days are keyed by lowercase English weekday name.
type DoctorSchedule struct {
	DoctorID    string             `json:"doctorId"`
	SlotMinutes int32              `json:"slotMinutes"`
	Days        map[string][]Shift `json:"days"`
	IsDefault   bool               `json:"isDefault"`
}

type GetDoctorScheduleRequest struct {
	DoctorID string `json:"doctorId"`
}

type SetDoctorScheduleRequest struct {
	DoctorID    string             `json:"doctorId"`
	SlotMinutes int32              `json:"slotMinutes"`
	Days        map[string][]Shift `json:"days"`
}

type AvailableSlotsRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
}

type Slot struct {
	Start     *timestamppb.Timestamp `json:"start"`
	End       *timestamppb.Timestamp `json:"end"`
	Available bool                   `json:"available"`
}

type AvailableSlotsResponse struct {
	Date     string  `json:"date"`
	Timezone string  `json:"timezone"`
	Slots    []*Slot `json:"slots"`
}

// ----- billing -----

type LineItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

type Invoice struct {
	ID            string                 `json:"id"`
	Number        string                 `json:"number"`
	PatientID     string                 `json:"patientId"`
	AppointmentID string                 `json:"appointmentId,omitempty"`
	Items         []*LineItem            `json:"items"`
	Discount      int64                  `json:"discount"`
	Subtotal      int64                  `json:"subtotal"`
	Total         int64                  `json:"total"`
	AmountPaid    int64                  `json:"amountPaid"`
	Balance       int64                  `json:"balance"`
	Currency      string                 `json:"currency"`
	TotalText     string                 `json:"totalText"`
	BalanceText   string                 `json:"balanceText"`
	Status        string                 `json:"status"`
	IssuedAt      *timestamppb.Timestamp `json:"issuedAt"`
	DueAt         *timestamppb.Timestamp `json:"dueAt,omitempty"`
	PaidAt        *timestamppb.Timestamp `json:"paidAt,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	CreatedAt     *timestamppb.Timestamp `json:"createdAt,omitempty"`
	UpdatedAt     *timestamppb.Timestamp `json:"updatedAt,omitempty"`
}

type CreateInvoiceRequest struct {
	PatientID     string                 `json:"patientId"`
	AppointmentID string                 `json:"appointmentId,omitempty"`
	Items         []*LineItem            `json:"items"`
	Discount      int64                  `json:"discount,omitempty"`
	IssuedAt      *timestamppb.Timestamp `json:"issuedAt,omitempty"`
	DueAt         *timestamppb.Timestamp `json:"dueAt,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
}

type UpdateInvoiceRequest struct {
	ID       string                 `json:"id"`
	Items    []*LineItem            `json:"items"`
	Discount int64                  `json:"discount,omitempty"`
	DueAt    *timestamppb.Timestamp `json:"dueAt,omitempty"`
	Notes    string                 `json:"notes,omitempty"`
}

type ListInvoicesRequest struct {
	PatientID string                 `json:"patientId,omitempty"`
	Status    string                 `json:"status,omitempty"`
	OpenOnly  bool                   `json:"openOnly,omitempty"`
	From      *timestamppb.Timestamp `json:"from,omitempty"`
	To        *timestamppb.Timestamp `json:"to,omitempty"`
	Page      int32                  `json:"page,omitempty"`
	PageSize  int32                  `json:"pageSize,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []*Invoice `json:"invoices"`
	Total    int32      `json:"total"`
}

type Payment struct {
	ID        string                 `json:"id"`
	InvoiceID string                 `json:"invoiceId"`
	PatientID string                 `json:"patientId"`
	Amount    int64                  `json:"amount"`
	Method    string                 `json:"method"`
	Reference string                 `json:"reference,omitempty"`
	PaidAt    *timestamppb.Timestamp `json:"paidAt"`
	CreatedBy string                 `json:"createdBy"`
}

type RecordPaymentRequest struct {
	InvoiceID string                 `json:"invoiceId"`
	Amount    int64                  `json:"amount"`
	Method    string                 `json:"method"`
	Reference string                 `json:"reference,omitempty"`
	PaidAt    *timestamppb.Timestamp `json:"paidAt,omitempty"`
}

type MarkInvoicePaidRequest struct {
	InvoiceID string `json:"invoiceId"`
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
	Invoice *Invoice `json:"invoice"`
}

type ReverseInvoicePaymentsRequest struct {
	InvoiceID string `json:"invoiceId"`
}

type ReverseInvoicePaymentsResponse struct {
	Invoice *Invoice `json:"invoice"`
	Removed int32    `json:"removed"`
}

type VoidInvoiceRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type ListPaymentsRequest struct {
	InvoiceID string                 `json:"invoiceId,omitempty"`
	PatientID string                 `json:"patientId,omitempty"`
	From      *timestamppb.Timestamp `json:"from,omitempty"`
	To        *timestamppb.Timestamp `json:"to,omitempty"`
	Page      int32                  `json:"page,omitempty"`
	PageSize  int32                  `json:"pageSize,omitempty"`
}

type ListPaymentsResponse struct {
	Payments []*Payment `json:"payments"`
	Total    int32      `json:"total"`
}

// ----- finance -----

type Vendor struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Phone     string                 `json:"phone,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Category  string                 `json:"category,omitempty"`
	Notes     string                 `json:"notes,omitempty"`
	CreatedAt *timestamppb.Timestamp `json:"createdAt,omitempty"`
}

type VendorFields struct {
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type CreateVendorRequest struct {
	VendorFields
}

type UpdateVendorRequest struct {
	ID string `json:"id"`
	VendorFields
}

type ListVendorsRequest struct {
	Query    string `json:"query,omitempty"`
	Page     int32  `json:"page,omitempty"`
	PageSize int32  `json:"pageSize,omitempty"`
}

type ListVendorsResponse struct {
	Vendors []*Vendor `json:"vendors"`
	Total   int32     `json:"total"`
}

type Expense struct {
	ID          string                 `json:"id"`
	VendorID    string                 `json:"vendorId,omitempty"`
	Category    string                 `json:"category"`
	Amount      int64                  `json:"amount"`
	IncurredAt  *timestamppb.Timestamp `json:"incurredAt"`
	Description string                 `json:"description,omitempty"`
	CreatedBy   string                 `json:"createdBy"`
}

type ExpenseFields struct {
	VendorID    string                 `json:"vendorId,omitempty"`
	Category    string                 `json:"category"`
	Amount      int64                  `json:"amount"`
	IncurredAt  *timestamppb.Timestamp `json:"incurredAt,omitempty"`
	Description string                 `json:"description,omitempty"`
}

type CreateExpenseRequest struct {
	ExpenseFields
}

type UpdateExpenseRequest struct {
	ID string `json:"id"`
	ExpenseFields
}

type ListExpensesRequest struct {
	VendorID string                 `json:"vendorId,omitempty"`
	Category string                 `json:"category,omitempty"`
	From     *timestamppb.Timestamp `json:"from,omitempty"`
	To       *timestamppb.Timestamp `json:"to,omitempty"`
	Page     int32                  `json:"page,omitempty"`
	PageSize int32                  `json:"pageSize,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
	Total    int32      `json:"total"`
}

type FinanceSummaryRequest struct {
	From *timestamppb.Timestamp `json:"from,omitempty"`
	To   *timestamppb.Timestamp `json:"to,omitempty"`
}

type Amount struct {
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
}

type FinanceSummary struct {
	Revenue     int64     `json:"revenue"`
	Expenses    int64     `json:"expenses"`
	Net         int64     `json:"net"`
	Outstanding int64     `json:"outstanding"`
	ByMethod    []*Amount `json:"byMethod"`
	ByCategory  []*Amount `json:"byCategory"`
	Currency    string    `json:"currency"`
	NetText     string    `json:"netText"`
}

// ----- tasks -----

type Task struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	AssigneeID  string                 `json:"assigneeId,omitempty"`
	PatientID   string                 `json:"patientId,omitempty"`
	Priority    string                 `json:"priority"`
	Status      string                 `json:"status"`
	DueAt       *timestamppb.Timestamp `json:"dueAt,omitempty"`
	Overdue     bool                   `json:"overdue"`
	CreatedBy   string                 `json:"createdBy"`
	CompletedAt *timestamppb.Timestamp `json:"completedAt,omitempty"`
	CreatedAt   *timestamppb.Timestamp `json:"createdAt,omitempty"`
}

type TaskFields struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	AssigneeID  string                 `json:"assigneeId,omitempty"`
	PatientID   string                 `json:"patientId,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	DueAt       *timestamppb.Timestamp `json:"dueAt,omitempty"`
}

type CreateTaskRequest struct {
	TaskFields
}

type UpdateTaskRequest struct {
	ID string `json:"id"`
	TaskFields
}

type SetTaskStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ListTasksRequest struct {
	AssigneeID  string `json:"assigneeId,omitempty"`
	PatientID   string `json:"patientId,omitempty"`
	Status      string `json:"status,omitempty"`
	OpenOnly    bool   `json:"openOnly,omitempty"`
	OverdueOnly bool   `json:"overdueOnly,omitempty"`
	Page        int32  `json:"page,omitempty"`
	PageSize    int32  `json:"pageSize,omitempty"`
}

type ListTasksResponse struct {
	Tasks []*Task `json:"tasks"`
	Total int32   `json:"total"`
}

// ----- activity & dashboard -----

type ActivityEvent struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actorId"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Action     string                 `json:"action"`
	Message    string                 `json:"message"`
	CreatedAt  *timestamppb.Timestamp `json:"createdAt"`
}

type ListActivityRequest struct {
	EntityType string                 `json:"entityType,omitempty"`
	EntityID   string                 `json:"entityId,omitempty"`
	ActorID    string                 `json:"actorId,omitempty"`
	From       *timestamppb.Timestamp `json:"from,omitempty"`
	To         *timestamppb.Timestamp `json:"to,omitempty"`
	Page       int32                  `json:"page,omitempty"`
	PageSize   int32                  `json:"pageSize,omitempty"`
}

type ListActivityResponse struct {
	Events []*ActivityEvent `json:"events"`
	Total  int32            `json:"total"`
}

type GetDashboardRequest struct {
	Date string `json:"date,omitempty"`
}

type Dashboard struct {
	Date                 string           `json:"date"`
	AppointmentsToday    int32            `json:"appointmentsToday"`
	AppointmentsByStatus map[string]int32 `json:"appointmentsByStatus"`
	Upcoming             []*Appointment   `json:"upcoming"`
	ActivePatients       int32            `json:"activePatients"`
	OpenTasks            int32            `json:"openTasks"`
	OverdueTasks         int32            `json:"overdueTasks"`
	RevenueToday         int64            `json:"revenueToday"`
	Outstanding          int64            `json:"outstanding"`
	Currency             string           `json:"currency"`
	RecentActivity       []*ActivityEvent `json:"recentActivity"`
}
