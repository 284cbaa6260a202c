package handler

import (
	"context"
	"strings"
	"time"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/store"
)

func (h *Handler) applyTask(ctx context.Context, t *model.Task, f rpc.TaskFields) error {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return apperr.Invalid("title required")
	}
	pr := model.TaskPriority(f.Priority)
	if pr == "" {
		pr = model.PriorityNormal
	}
	if !pr.Valid() {
		return apperr.Invalid("unknown priority")
	}
	if f.AssigneeID != "" {
		if _, err := h.store.GetUser(ctx, t.ClinicID, f.AssigneeID); err != nil {
			return storeErr(err, "Assignee")
		}
	}
	if f.PatientID != "" {
		if _, err := h.store.GetPatient(ctx, t.ClinicID, f.PatientID); err != nil {
			return storeErr(err, "Patient")
		}
	}
	t.Title = title
	t.Description = f.Description
	t.AssigneeID = f.AssigneeID
	t.PatientID = f.PatientID
	t.Priority = pr
	t.DueAt = timePtr(f.DueAt)
	return nil
}

func (h *Handler) CreateTask(ctx context.Context, req *rpc.CreateTaskRequest) (*rpc.Task, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	t := &model.Task{ID: newID(), ClinicID: c.ClinicID, Status: model.TaskTodo, CreatedBy: c.UserID}
	if err := h.applyTask(ctx, t, req.TaskFields); err != nil {
		return nil, err
	}
	if err := h.store.CreateTask(ctx, t); err != nil {
		return nil, storeErr(err, "Task")
	}
	h.record(ctx, c, "task", t.ID, "created", "Created task "+t.Title)
	return h.toTask(t), nil
}

func (h *Handler) GetTask(ctx context.Context, req *rpc.IDRequest) (*rpc.Task, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	t, err := h.store.GetTask(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Task")
	}
	return h.toTask(t), nil
}

func (h *Handler) UpdateTask(ctx context.Context, req *rpc.UpdateTaskRequest) (*rpc.Task, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	t, err := h.store.GetTask(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Task")
	}
	if err := h.applyTask(ctx, t, req.TaskFields); err != nil {
		return nil, err
	}
	if err := h.store.UpdateTask(ctx, t); err != nil {
		return nil, storeErr(err, "Task")
	}
	h.record(ctx, c, "task", t.ID, "updated", "Updated task "+t.Title)
	return h.toTask(t), nil
}

func (h *Handler) DeleteTask(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	t, err := h.store.GetTask(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Task")
	}
	if err := h.store.DeleteTask(ctx, c.ClinicID, t.ID); err != nil {
		return nil, storeErr(err, "Task")
	}
	h.record(ctx, c, "task", t.ID, "deleted", "Deleted task "+t.Title)
	return &rpc.Empty{}, nil
}

// SetTaskStatus stamps CompletedAt on entering done and clears it on leaving.
func (h *Handler) SetTaskStatus(ctx context.Context, req *rpc.SetTaskStatusRequest) (*rpc.Task, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	next := model.TaskStatus(req.Status)
	if !next.Valid() {
		return nil, apperr.Invalid("unknown task status")
	}
	t, err := h.store.GetTask(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Task")
	}
	if t.Status == next {
		return h.toTask(t), nil
	}

	switch {
	case next == model.TaskDone:
		now := h.now().UTC()
		t.CompletedAt = &now
	case t.Status == model.TaskDone:
		t.CompletedAt = nil
	}
	t.Status = next
	if err := h.store.UpdateTask(ctx, t); err != nil {
		return nil, storeErr(err, "Task")
	}
	h.record(ctx, c, "task", t.ID, "status_changed", t.Title+" is now "+string(next))
	return h.toTask(t), nil
}

func (h *Handler) ListTasks(ctx context.Context, req *rpc.ListTasksRequest) (*rpc.ListTasksResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	st := model.TaskStatus(req.Status)
	if st != "" && !st.Valid() {
		return nil, apperr.Invalid("unknown task status")
	}
	f := store.TaskFilter{
		AssigneeID: req.AssigneeID,
		PatientID:  req.PatientID,
		Status:     st,
		OpenOnly:   req.OpenOnly,
		Page:       page(req.Page, req.PageSize),
	}
	if req.OverdueOnly {
		f.OverdueAt = h.now()
	}
	tasks, total, err := h.store.ListTasks(ctx, c.ClinicID, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Task, len(tasks))
	for i := range tasks {
		out[i] = h.toTask(&tasks[i])
	}
	return &rpc.ListTasksResponse{Tasks: out, Total: int32(total)}, nil
}

func (h *Handler) toTask(t *model.Task) *rpc.Task {
	return &rpc.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AssigneeID:  t.AssigneeID,
		PatientID:   t.PatientID,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		DueAt:       tsPtr(t.DueAt),
		Overdue:     t.Overdue(h.now()),
		CreatedBy:   t.CreatedBy,
		CompletedAt: tsPtr(t.CompletedAt),
		CreatedAt:   ts(t.CreatedAt),
	}
}

// overdueCount counts open tasks due before now.
func (h *Handler) overdueCount(ctx context.Context, clinicID string, now time.Time) (int, error) {
	_, n, err := h.store.ListTasks(ctx, clinicID, store.TaskFilter{OverdueAt: now, Page: store.Page{Size: 1}})
	return n, err
}
