package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
)

const (
	userIDKey     contextKey = "user_id"
	userEmailKey  contextKey = "user_email"
	tenantIDKey   contextKey = "tenant_id"
	sessionIDKey  contextKey = "session_id"
	userRecordKey contextKey = "user_record"
)

// Authenticate validates the bearer token and loads the caller's user
// record into the request context. The record is re-read per request so
// permission and activation changes apply immediately.
func Authenticate(auth *app.AuthService, users *app.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				apierror.Unauthorized("Missing authorization token").WriteJSON(w)
				return
			}

			claims, err := auth.ValidateAccess(r.Context(), token)
			if err != nil {
				apierror.Unauthorized("Invalid or expired token").WriteJSON(w)
				return
			}

			userID, err := shared.IDFromString(claims.UserID)
			if err != nil {
				apierror.Unauthorized("Invalid token subject").WriteJSON(w)
				return
			}

			record, err := users.GetUser(r.Context(), userID)
			if err != nil {
				apierror.Unauthorized("Unknown user").WriteJSON(w)
				return
			}
			if !record.IsActive() {
				apierror.Forbidden("Account is deactivated").WriteJSON(w)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, userIDKey, userID)
			ctx = context.WithValue(ctx, userEmailKey, record.Email())
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			ctx = context.WithValue(ctx, userRecordKey, record)
			if record.HasTenant() {
				ctx = context.WithValue(ctx, tenantIDKey, *record.TenantID())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects callers who have not joined a workspace yet.
// It must run after Authenticate.
func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Value(tenantIDKey).(shared.ID); !ok {
				apierror.Forbidden("No workspace membership").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission enforces a minimum permission level on a resource.
// It must run after Authenticate.
func RequirePermission(resource user.Resource, level user.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := r.Context().Value(userRecordKey).(*user.Record)
			if !ok {
				apierror.Unauthorized("Missing authentication context").WriteJSON(w)
				return
			}
			if !record.Can(resource, level) {
				apierror.Forbidden("Insufficient permissions").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserID returns the authenticated user's ID from the context.
func GetUserID(ctx context.Context) (shared.ID, bool) {
	id, ok := ctx.Value(userIDKey).(shared.ID)
	return id, ok
}

// GetUserEmail returns the authenticated user's email from the context.
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailKey).(string)
	return email, ok
}

// GetTenantID returns the caller's tenant ID from the context.
func GetTenantID(ctx context.Context) (shared.ID, bool) {
	id, ok := ctx.Value(tenantIDKey).(shared.ID)
	return id, ok
}

// GetSessionID returns the caller's session ID from the context.
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

// GetUserRecord returns the authenticated user's record from the
// context.
func GetUserRecord(ctx context.Context) (*user.Record, bool) {
	record, ok := ctx.Value(userRecordKey).(*user.Record)
	return record, ok
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
