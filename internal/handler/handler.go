// Package handler implements ClinicService on top of a Store. Every method
// works inside the caller's clinic, taken from the authenticated principal.
package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/timestamppb"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/auth"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/scheduling"
	"tabibdesk/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultInactiveDays  = 180
	defaultCurrency      = "EGP"
	defaultClinicTZ      = "Africa/Cairo"
	minPasswordLen       = 8
	bookingGrace         = 5 * time.Minute
	dashboardUpcoming    = 5
	dashboardRecentItems = 10
)

type Options struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	Schedule          model.Schedule
	DefaultTimezone   string
	InactiveAfterDays int
	Logger            *zap.Logger
	// Now is the clock; tests pin it.
	Now func() time.Time
}

type Handler struct {
	store  store.Store
	secret string

	accessTTL    time.Duration
	refreshTTL   time.Duration
	schedule     model.Schedule
	timezone     string
	inactiveDays int
	log          *zap.Logger
	now          func() time.Time

	// payMu serializes read-modify-write of invoice balances.
	payMu sync.Mutex
}

var _ rpc.ClinicServiceServer = (*Handler)(nil)

func New(st store.Store, secret string, opts Options) *Handler {
	h := &Handler{
		store:        st,
		secret:       secret,
		accessTTL:    opts.AccessTTL,
		refreshTTL:   opts.RefreshTTL,
		schedule:     opts.Schedule,
		timezone:     opts.DefaultTimezone,
		inactiveDays: opts.InactiveAfterDays,
		log:          opts.Logger,
		now:          opts.Now,
	}
	if h.accessTTL <= 0 {
		h.accessTTL = auth.DefaultAccessTTL
	}
	if h.refreshTTL <= 0 {
		h.refreshTTL = defaultRefreshTTL
	}
	if h.schedule.SlotMinutes <= 0 {
		h.schedule = scheduling.Default()
	}
	if h.timezone == "" {
		h.timezone = defaultClinicTZ
	}
	if h.inactiveDays <= 0 {
		h.inactiveDays = defaultInactiveDays
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func caller(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFrom(ctx)
	if !ok {
		return middleware.Principal{}, apperr.Unauthenticated("no token")
	}
	return p, nil
}

func newID() string { return uuid.New().String() }

// storeErr maps store sentinels to caller-facing errors.
func storeErr(err error, entity string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(entity)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(entity + " already exists")
	}
	return apperr.Internal(err)
}

// record appends to the activity feed. A failed append is logged and never
// fails the operation that produced it.
func (h *Handler) record(ctx context.Context, p middleware.Principal, entityType, entityID, action, msg string) {
	e := &model.ActivityEvent{
		ID:         newID(),
		ClinicID:   p.ClinicID,
		ActorID:    p.UserID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Message:    msg,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.store.AppendActivity(ctx, e); err != nil {
		h.log.Warn("activity append failed",
			zap.String("clinic", p.ClinicID),
			zap.String("entity", entityType),
			zap.String("action", action),
			zap.Error(err))
	}
}

// clinic loads the caller's clinic and its location.
func (h *Handler) clinic(ctx context.Context, id string) (*model.Clinic, *time.Location, error) {
	c, err := h.store.GetClinic(ctx, id)
	if err != nil {
		return nil, nil, storeErr(err, "Clinic")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return c, loc, nil
}

func page(num, size int32) store.Page {
	n, s := int(num), int(size)
	if n < 1 {
		n = 1
	}
	switch {
	case s <= 0:
		s = defaultPageSize
	case s > maxPageSize:
		s = maxPageSize
	}
	return store.Page{Number: n, Size: s}
}

func ts(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func tsPtr(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return ts(*t)
}

// timeOf returns the zero time for a nil timestamp.
func timeOf(t *timestamppb.Timestamp) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.AsTime()
}

func timePtr(t *timestamppb.Timestamp) *time.Time {
	if t == nil {
		return nil
	}
	v := t.AsTime()
	return &v
}
