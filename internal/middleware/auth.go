package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/auth"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated caller, taken from the access token.
type Principal struct {
	UserID   string
	ClinicID string
	Role     model.Role
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != "" && p.ClinicID != ""
}

// skip auth for these
var open = map[string]bool{
	rpc.FullMethod("Register"): true,
	rpc.FullMethod("Login"):    true,
	rpc.FullMethod("Refresh"):  true,
	rpc.FullMethod("Logout"):   true,
}

// admin only
var adminOnly = map[string]bool{
	rpc.FullMethod("AddStaff"):                 true,
	rpc.FullMethod("CreateVendor"):             true,
	rpc.FullMethod("GetVendor"):                true,
	rpc.FullMethod("UpdateVendor"):             true,
	rpc.FullMethod("DeleteVendor"):             true,
	rpc.FullMethod("ListVendors"):              true,
	rpc.FullMethod("CreateExpense"):            true,
	rpc.FullMethod("GetExpense"):               true,
	rpc.FullMethod("UpdateExpense"):            true,
	rpc.FullMethod("DeleteExpense"):            true,
	rpc.FullMethod("ListExpenses"):             true,
	rpc.FullMethod("FinanceSummary"):           true,
	rpc.FullMethod("VoidInvoice"):              true,
	rpc.FullMethod("ReconcilePatientStatuses"): true,
}

func Auth(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// token from Authorization: Bearer <jwt>
		raw := ""
		vals := md.Get("authorization")
		if len(vals) > 0 {
			raw = strings.TrimPrefix(vals[0], "Bearer ")
		}

		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}

		ctx = WithPrincipal(ctx, Principal{UserID: claims.UserID, ClinicID: claims.ClinicID, Role: claims.Role})
		return next(ctx, req)
	}
}

// Roles enforces the admin-only methods. It runs after Auth.
func Roles() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !adminOnly[info.FullMethod] {
			return next(ctx, req)
		}
		p, ok := PrincipalFrom(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}
		if p.Role != model.RoleAdmin {
			return nil, status.Error(codes.PermissionDenied, "admin only")
		}
		return next(ctx, req)
	}
}
