// Package rpc declares the ClinicService wire surface: messages, the JSON
// codec and the grpc.ServiceDesc the server and the gRPC-Web bridge share.
package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "tabibdesk.v1.ClinicService"

// FullMethod returns "/tabibdesk.v1.ClinicService/<name>".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

type ClinicServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	AddStaff(context.Context, *AddStaffRequest) (*User, error)
	ListStaff(context.Context, *ListStaffRequest) (*ListStaffResponse, error)

	CreatePatient(context.Context, *CreatePatientRequest) (*Patient, error)
	GetPatient(context.Context, *IDRequest) (*Patient, error)
	UpdatePatient(context.Context, *UpdatePatientRequest) (*Patient, error)
	DeletePatient(context.Context, *IDRequest) (*Empty, error)
	ListPatients(context.Context, *ListPatientsRequest) (*ListPatientsResponse, error)
	SetPatientStatus(context.Context, *SetPatientStatusRequest) (*Patient, error)
	ReconcilePatientStatuses(context.Context, *ReconcilePatientStatusesRequest) (*ReconcilePatientStatusesResponse, error)

	CreateAppointment(context.Context, *CreateAppointmentRequest) (*Appointment, error)
	GetAppointment(context.Context, *IDRequest) (*Appointment, error)
	UpdateAppointment(context.Context, *UpdateAppointmentRequest) (*Appointment, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	SetAppointmentStatus(context.Context, *SetAppointmentStatusRequest) (*Appointment, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*Appointment, error)
	GetDoctorSchedule(context.Context, *GetDoctorScheduleRequest) (*DoctorSchedule, error)
	SetDoctorSchedule(context.Context, *SetDoctorScheduleRequest) (*DoctorSchedule, error)
	AvailableSlots(context.Context, *AvailableSlotsRequest) (*AvailableSlotsResponse, error)

	CreateInvoice(context.Context, *CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(context.Context, *IDRequest) (*Invoice, error)
	UpdateInvoice(context.Context, *UpdateInvoiceRequest) (*Invoice, error)
	ListInvoices(context.Context, *ListInvoicesRequest) (*ListInvoicesResponse, error)
	RecordPayment(context.Context, *RecordPaymentRequest) (*PaymentResponse, error)
	MarkInvoicePaid(context.Context, *MarkInvoicePaidRequest) (*PaymentResponse, error)
	ReverseInvoicePayments(context.Context, *ReverseInvoicePaymentsRequest) (*ReverseInvoicePaymentsResponse, error)
	DeletePayment(context.Context, *IDRequest) (*Invoice, error)
	VoidInvoice(context.Context, *VoidInvoiceRequest) (*Invoice, error)
	ListPayments(context.Context, *ListPaymentsRequest) (*ListPaymentsResponse, error)

	CreateVendor(context.Context, *CreateVendorRequest) (*Vendor, error)
	GetVendor(context.Context, *IDRequest) (*Vendor, error)
	UpdateVendor(context.Context, *UpdateVendorRequest) (*Vendor, error)
	DeleteVendor(context.Context, *IDRequest) (*Empty, error)
	ListVendors(context.Context, *ListVendorsRequest) (*ListVendorsResponse, error)
	CreateExpense(context.Context, *CreateExpenseRequest) (*Expense, error)
	GetExpense(context.Context, *IDRequest) (*Expense, error)
	UpdateExpense(context.Context, *UpdateExpenseRequest) (*Expense, error)
	DeleteExpense(context.Context, *IDRequest) (*Empty, error)
	ListExpenses(context.Context, *ListExpensesRequest) (*ListExpensesResponse, error)
	FinanceSummary(context.Context, *FinanceSummaryRequest) (*FinanceSummary, error)

	CreateTask(context.Context, *CreateTaskRequest) (*Task, error)
	GetTask(context.Context, *IDRequest) (*Task, error)
	UpdateTask(context.Context, *UpdateTaskRequest) (*Task, error)
	DeleteTask(context.Context, *IDRequest) (*Empty, error)
	SetTaskStatus(context.Context, *SetTaskStatusRequest) (*Task, error)
	ListTasks(context.Context, *ListTasksRequest) (*ListTasksResponse, error)

	ListActivity(context.Context, *ListActivityRequest) (*ListActivityResponse, error)
	GetDashboard(context.Context, *GetDashboardRequest) (*Dashboard, error)
}

// unary adapts a typed server method to grpc.MethodDesc. Decoding happens
// before the interceptor chain runs, as in generated code.
func unary[Req, Resp any](name string, call func(ClinicServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ClinicServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClinicServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", ClinicServiceServer.Register),
		unary("Login", ClinicServiceServer.Login),
		unary("Refresh", ClinicServiceServer.Refresh),
		unary("Logout", ClinicServiceServer.Logout),
		unary("AddStaff", ClinicServiceServer.AddStaff),
		unary("ListStaff", ClinicServiceServer.ListStaff),

		unary("CreatePatient", ClinicServiceServer.CreatePatient),
		unary("GetPatient", ClinicServiceServer.GetPatient),
		unary("UpdatePatient", ClinicServiceServer.UpdatePatient),
		unary("DeletePatient", ClinicServiceServer.DeletePatient),
		unary("ListPatients", ClinicServiceServer.ListPatients),
		unary("SetPatientStatus", ClinicServiceServer.SetPatientStatus),
		unary("ReconcilePatientStatuses", ClinicServiceServer.ReconcilePatientStatuses),

		unary("CreateAppointment", ClinicServiceServer.CreateAppointment),
		unary("GetAppointment", ClinicServiceServer.GetAppointment),
		unary("UpdateAppointment", ClinicServiceServer.UpdateAppointment),
		unary("ListAppointments", ClinicServiceServer.ListAppointments),
		unary("SetAppointmentStatus", ClinicServiceServer.SetAppointmentStatus),
		unary("CancelAppointment", ClinicServiceServer.CancelAppointment),
		unary("GetDoctorSchedule", ClinicServiceServer.GetDoctorSchedule),
		unary("SetDoctorSchedule", ClinicServiceServer.SetDoctorSchedule),
		unary("AvailableSlots", ClinicServiceServer.AvailableSlots),

		unary("CreateInvoice", ClinicServiceServer.CreateInvoice),
		unary("GetInvoice", ClinicServiceServer.GetInvoice),
		unary("UpdateInvoice", ClinicServiceServer.UpdateInvoice),
		unary("ListInvoices", ClinicServiceServer.ListInvoices),
		unary("RecordPayment", ClinicServiceServer.RecordPayment),
		unary("MarkInvoicePaid", ClinicServiceServer.MarkInvoicePaid),
		unary("ReverseInvoicePayments", ClinicServiceServer.ReverseInvoicePayments),
		unary("DeletePayment", ClinicServiceServer.DeletePayment),
		unary("VoidInvoice", ClinicServiceServer.VoidInvoice),
		unary("ListPayments", ClinicServiceServer.ListPayments),

		unary("CreateVendor", ClinicServiceServer.CreateVendor),
		unary("GetVendor", ClinicServiceServer.GetVendor),
		unary("UpdateVendor", ClinicServiceServer.UpdateVendor),
		unary("DeleteVendor", ClinicServiceServer.DeleteVendor),
		unary("ListVendors", ClinicServiceServer.ListVendors),
		unary("CreateExpense", ClinicServiceServer.CreateExpense),
		unary("GetExpense", ClinicServiceServer.GetExpense),
		unary("UpdateExpense", ClinicServiceServer.UpdateExpense),
		unary("DeleteExpense", ClinicServiceServer.DeleteExpense),
		unary("ListExpenses", ClinicServiceServer.ListExpenses),
		unary("FinanceSummary", ClinicServiceServer.FinanceSummary),

		unary("CreateTask", ClinicServiceServer.CreateTask),
		unary("GetTask", ClinicServiceServer.GetTask),
		unary("UpdateTask", ClinicServiceServer.UpdateTask),
		unary("DeleteTask", ClinicServiceServer.DeleteTask),
		unary("SetTaskStatus", ClinicServiceServer.SetTaskStatus),
		unary("ListTasks", ClinicServiceServer.ListTasks),

		unary("ListActivity", ClinicServiceServer.ListActivity),
		unary("GetDashboard", ClinicServiceServer.GetDashboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tabibdesk/v1/clinic.proto",
}

func RegisterClinicServiceServer(s grpc.ServiceRegistrar, srv ClinicServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Lookup finds a method by its full name, e.g. for in-process dispatch.
func Lookup(fullMethod string) (grpc.MethodDesc, bool) {
	for _, m := range ServiceDesc.Methods {
		if FullMethod(m.MethodName) == fullMethod {
			return m, true
		}
	}
	return grpc.MethodDesc{}, false
}

// Client invokes ClinicService methods over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method (short name, e.g. "Login") and decodes into out.
func (c *Client) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(Codec{}.Name()))
	return c.cc.Invoke(ctx, FullMethod(method), in, out, opts...)
}
