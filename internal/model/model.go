package model

import "time"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleReceptionist:
		return true
	}
	return false
}

type Clinic struct {
	ID        string
	Name      string
	Timezone  string
	Currency  string
	CreatedAt time.Time
}

type User struct {
	ID           string
	ClinicID     string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Patient struct {
	ID          string
	ClinicID    string
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	DateOfBirth *time.Time
	Gender      string
	Address     string
	Notes       string
	Allergies   []string
	Status      PatientStatus
	LastVisitAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeProcedure    AppointmentType = "procedure"
	TypeWalkIn       AppointmentType = "walk_in"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeProcedure, TypeWalkIn:
		return true
	}
	return false
}

type Appointment struct {
	ID        string
	ClinicID  string
	PatientID string
	DoctorID  string
	StartTime time.Time
	EndTime   time.Time
	Type      AppointmentType
	Status    AppointmentStatus
	Reason    string
	Notes     string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LineItem struct {
	Description string
	Quantity    int64
	UnitPrice   int64
}

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceVoid          InvoiceStatus = "void"
)

type Invoice struct {
	ID            string
	ClinicID      string
	Number        string
	PatientID     string
	AppointmentID string
	Items         []LineItem
	Discount      int64
	Subtotal      int64
	Total         int64
	AmountPaid    int64
	Status        InvoiceStatus
	IssuedAt      time.Time
	DueAt         *time.Time
	PaidAt        *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (i *Invoice) Balance() int64 {
	if i.Status == InvoiceVoid {
		return 0
	}
	if b := i.Total - i.AmountPaid; b > 0 {
		return b
	}
	return 0
}

type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodCard      PaymentMethod = "card"
	MethodTransfer  PaymentMethod = "transfer"
	MethodInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodInsurance:
		return true
	}
	return false
}

type Payment struct {
	ID        string
	ClinicID  string
	InvoiceID string
	PatientID string
	Amount    int64
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
	CreatedBy string
	CreatedAt time.Time
}

type Vendor struct {
	ID        string
	ClinicID  string
	Name      string
	Phone     string
	Email     string
	Category  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ExpenseCategory string

const (
	ExpenseRent      ExpenseCategory = "rent"
	ExpenseSalaries  ExpenseCategory = "salaries"
	ExpenseSupplies  ExpenseCategory = "supplies"
	ExpenseUtilities ExpenseCategory = "utilities"
	ExpenseEquipment ExpenseCategory = "equipment"
	ExpenseOther     ExpenseCategory = "other"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseRent, ExpenseSalaries, ExpenseSupplies, ExpenseUtilities, ExpenseEquipment, ExpenseOther:
		return true
	}
	return false
}

type Expense struct {
	ID          string
	ClinicID    string
	VendorID    string
	Category    ExpenseCategory
	Amount      int64
	IncurredAt  time.Time
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// Rank orders priorities high first.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

func (p TaskPriority) Valid() bool { return p.Rank() < 3 }

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

type Task struct {
	ID          string
	ClinicID    string
	Title       string
	Description string
	AssigneeID  string
	PatientID   string
	Priority    TaskPriority
	Status      TaskStatus
	DueAt       *time.Time
	CreatedBy   string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t *Task) Overdue(now time.Time) bool {
	return t.Status != TaskDone && t.DueAt != nil && t.DueAt.Before(now)
}

type ActivityEvent struct {
	ID         string
	ClinicID   string
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Message    string
	CreatedAt  time.Time
}

// Shift is a working window inside a day, "HH:MM" wall-clock in the clinic timezone.
type Shift struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type Schedule struct {
	SlotMinutes int                      `yaml:"slot_minutes"`
	Days        map[time.Weekday][]Shift `yaml:"-"`
}

type DoctorSchedule struct {
	ClinicID  string
	DoctorID  string
	Schedule  Schedule
	UpdatedAt time.Time
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}
