package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-claims/internal"
	coreuser "github.com/frahmantamala/expense-claims/internal/core/user"
	"github.com/frahmantamala/expense-claims/internal/transport"
)

// RBACAuthorization gates routes on the principal's role. It must run after
// AuthMiddleware.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// RequireRoles answers 401 without a principal and 403 when its role is not in roles.
func (ra *RBACAuthorization) RequireRoles(roles ...coreuser.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				ra.Logger.WarnContext(r.Context(), "authorization check failed: no principal in context")
				ra.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			if !principal.HasAnyRole(roles...) {
				ra.Logger.WarnContext(r.Context(), "access denied: role not allowed",
					"user_id", principal.UserID,
					"role", principal.Role,
					"allowed_roles", roles)
				ra.WriteAppError(w, internal.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireSubmitter() func(http.Handler) http.Handler {
	return ra.RequireRoles(coreuser.RoleStaff)
}

func (ra *RBACAuthorization) RequireReviewer() func(http.Handler) http.Handler {
	return ra.RequireRoles(coreuser.RoleManager, coreuser.RoleFinance)
}
