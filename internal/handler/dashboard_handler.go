package handler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/billing"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/scheduling"
	"tabibdesk/internal/store"
)

func (h *Handler) ListActivity(ctx context.Context, req *rpc.ListActivityRequest) (*rpc.ListActivityResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	evs, total, err := h.store.ListActivity(ctx, c.ClinicID, store.ActivityFilter{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActorID:    req.ActorID,
		From:       timeOf(req.From),
		To:         timeOf(req.To),
		Page:       page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &rpc.ListActivityResponse{Events: toEvents(evs), Total: int32(total)}, nil
}

// GetDashboard summarizes one clinic day, today when no date is given. The
// independent reads run concurrently.
func (h *Handler) GetDashboard(ctx context.Context, req *rpc.GetDashboardRequest) (*rpc.Dashboard, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	clinic, loc, err := h.clinic(ctx, c.ClinicID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	day := now.In(loc)
	if req.Date != "" {
		if day, err = scheduling.ParseDate(req.Date, loc); err != nil {
			return nil, apperr.Invalid("date must be YYYY-MM-DD")
		}
	}
	from, to := scheduling.DayBounds(day, loc)

	var (
		appts                 []model.Appointment
		active, open, overdue int
		pays                  []model.Payment
		unpaid                []model.Invoice
		recent                []model.ActivityEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		appts, _, err = h.store.ListAppointments(gctx, c.ClinicID, store.AppointmentFilter{From: from, To: to})
		return err
	})
	g.Go(func() (err error) {
		_, active, err = h.store.ListPatients(gctx, c.ClinicID, store.PatientFilter{
			Status: model.PatientActive, Page: store.Page{Size: 1},
		})
		return err
	})
	g.Go(func() (err error) {
		_, open, err = h.store.ListTasks(gctx, c.ClinicID, store.TaskFilter{OpenOnly: true, Page: store.Page{Size: 1}})
		return err
	})
	g.Go(func() (err error) {
		overdue, err = h.overdueCount(gctx, c.ClinicID, now)
		return err
	})
	g.Go(func() (err error) {
		pays, _, err = h.store.ListPayments(gctx, c.ClinicID, store.PaymentFilter{From: from, To: to})
		return err
	})
	g.Go(func() (err error) {
		unpaid, _, err = h.store.ListInvoices(gctx, c.ClinicID, store.InvoiceFilter{Open: true})
		return err
	})
	g.Go(func() (err error) {
		recent, _, err = h.store.ListActivity(gctx, c.ClinicID, store.ActivityFilter{
			Page: store.Page{Size: dashboardRecentItems},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}

	sum := billing.Summarize(pays, nil, unpaid)
	d := &rpc.Dashboard{
		Date:                 from.Format(scheduling.DateLayout),
		AppointmentsToday:    int32(len(appts)),
		AppointmentsByStatus: map[string]int32{},
		Upcoming:             []*rpc.Appointment{},
		ActivePatients:       int32(active),
		OpenTasks:            int32(open),
		OverdueTasks:         int32(overdue),
		RevenueToday:         sum.Revenue,
		Outstanding:          sum.Outstanding,
		Currency:             clinic.Currency,
		RecentActivity:       toEvents(recent),
	}
	for i := range appts {
		a := &appts[i]
		d.AppointmentsByStatus[string(a.Status)]++
		if a.Status.Blocking() && !a.StartTime.Before(now) && len(d.Upcoming) < dashboardUpcoming {
			d.Upcoming = append(d.Upcoming, toAppointment(a))
		}
	}
	return d, nil
}

func toEvents(evs []model.ActivityEvent) []*rpc.ActivityEvent {
	out := make([]*rpc.ActivityEvent, len(evs))
	for i, e := range evs {
		out[i] = &rpc.ActivityEvent{
			ID:         e.ID,
			ActorID:    e.ActorID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Message:    e.Message,
			CreatedAt:  ts(e.CreatedAt),
		}
	}
	return out
}
