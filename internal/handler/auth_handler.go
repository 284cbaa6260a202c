package handler

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/auth"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/store"
)

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// Register opens a new clinic with its first admin.
func (h *Handler) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.AuthResponse, error) {
	email := normEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.ClinicName) == "" {
		return nil, status.Error(codes.InvalidArgument, "all fields required")
	}
	if !validEmail(email) {
		return nil, status.Error(codes.InvalidArgument, "invalid email")
	}
	if len(req.Password) < minPasswordLen {
		return nil, status.Error(codes.InvalidArgument, "password too short")
	}

	tz := req.Timezone
	if tz == "" {
		tz = h.timezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, status.Error(codes.InvalidArgument, "unknown timezone")
	}
	cur := defaultCurrency
	if req.Currency != "" {
		unit, err := currency.ParseISO(req.Currency)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "unknown currency")
		}
		cur = unit.String()
	}

	// checked up front so a taken email does not leave an empty clinic behind
	if _, err := h.store.UserByEmail(ctx, email); err == nil {
		return nil, status.Error(codes.AlreadyExists, "registration failed")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	c := &model.Clinic{ID: newID(), Name: strings.TrimSpace(req.ClinicName), Timezone: tz, Currency: cur}
	if err := h.store.CreateClinic(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}

	u := &model.User{
		ID:           newID(),
		ClinicID:     c.ID,
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         model.RoleAdmin,
	}
	if err := h.store.CreateUser(ctx, u); err != nil {
		// unique violation = dup email, but don't reveal that
		return nil, status.Error(codes.AlreadyExists, "registration failed")
	}

	h.log.Info("clinic registered", zap.String("clinic", c.ID), zap.String("user", u.ID))
	return h.issue(ctx, u, c)
}

func (h *Handler) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	u, err := h.store.UserByEmail(ctx, normEmail(req.Email))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	c, err := h.store.GetClinic(ctx, u.ClinicID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return h.issue(ctx, u, c)
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes every session of its user.
func (h *Handler) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token required")
	}

	old, err := h.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if old.Revoked {
		h.revokeAll(ctx, old.UserID)
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if !h.now().Before(old.ExpiresAt) {
		return nil, status.Error(codes.Unauthenticated, "refresh token expired")
	}

	u, err := h.store.UserByID(ctx, old.UserID)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	c, err := h.store.GetClinic(ctx, u.ClinicID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	exp := h.now().Add(h.refreshTTL)
	if err := h.store.RotateRefreshToken(ctx, old.ID, newID(), u.ID, hash, exp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// lost a race with another rotation of the same token
			h.revokeAll(ctx, u.ID)
			return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
		}
		return nil, apperr.Internal(err)
	}
	return h.respond(u, c, raw, exp)
}

// Logout revokes the sessions of the token's user. Unknown tokens are ignored.
func (h *Handler) Logout(ctx context.Context, req *rpc.LogoutRequest) (*rpc.Empty, error) {
	if req.RefreshToken == "" {
		return &rpc.Empty{}, nil
	}
	rt, err := h.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		return &rpc.Empty{}, nil
	}
	if err := h.store.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
		return nil, apperr.Internal(err)
	}
	return &rpc.Empty{}, nil
}

func (h *Handler) revokeAll(ctx context.Context, userID string) {
	if err := h.store.RevokeAllRefreshTokens(ctx, userID); err != nil {
		h.log.Error("revoke refresh tokens", zap.String("user", userID), zap.Error(err))
		return
	}
	h.log.Warn("refresh token reuse, sessions revoked", zap.String("user", userID))
}

// issue starts a new session for u.
func (h *Handler) issue(ctx context.Context, u *model.User, c *model.Clinic) (*rpc.AuthResponse, error) {
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	exp := h.now().Add(h.refreshTTL)
	if _, err := h.store.CreateRefreshToken(ctx, u.ID, hash, exp); err != nil {
		return nil, apperr.Internal(err)
	}
	return h.respond(u, c, raw, exp)
}

func (h *Handler) respond(u *model.User, c *model.Clinic, refresh string, refreshExp time.Time) (*rpc.AuthResponse, error) {
	now := h.now()
	tok, err := auth.MakeTokenAt(u, h.secret, h.accessTTL, now)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &rpc.AuthResponse{
		AccessToken:      tok,
		AccessExpiresAt:  ts(now.Add(h.accessTTL)),
		RefreshToken:     refresh,
		RefreshExpiresAt: ts(refreshExp),
		User:             toUser(u),
		Clinic:           toClinic(c),
	}, nil
}

// AddStaff creates a doctor, receptionist or admin in the caller's clinic.
func (h *Handler) AddStaff(ctx context.Context, req *rpc.AddStaffRequest) (*rpc.User, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	email := normEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Invalid("name, email and password required")
	}
	if !validEmail(email) {
		return nil, apperr.Invalid("invalid email")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Invalid("password too short")
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, apperr.Invalid("unknown role")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &model.User{
		ID:           newID(),
		ClinicID:     p.ClinicID,
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
	}
	if err := h.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("email already in use")
		}
		return nil, apperr.Internal(err)
	}

	h.record(ctx, p, "user", u.ID, "created", "Added "+string(role)+" "+u.Name)
	return toUser(u), nil
}

func (h *Handler) ListStaff(ctx context.Context, req *rpc.ListStaffRequest) (*rpc.ListStaffResponse, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	role := model.Role(req.Role)
	if role != "" && !role.Valid() {
		return nil, apperr.Invalid("unknown role")
	}
	users, err := h.store.ListUsers(ctx, p.ClinicID, role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.User, len(users))
	for i := range users {
		out[i] = toUser(&users[i])
	}
	return &rpc.ListStaffResponse{Staff: out}, nil
}

func toUser(u *model.User) *rpc.User {
	return &rpc.User{
		ID:        u.ID,
		ClinicID:  u.ClinicID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: ts(u.CreatedAt),
	}
}

func toClinic(c *model.Clinic) *rpc.Clinic {
	return &rpc.Clinic{ID: c.ID, Name: c.Name, Timezone: c.Timezone, Currency: c.Currency}
}
