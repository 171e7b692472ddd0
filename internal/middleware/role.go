package middleware

import (
	"net/http"
	"slices"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
)

// RequireRole returns middleware that allows only users holding one of roles.
// Returns 403 Forbidden for any other role.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
