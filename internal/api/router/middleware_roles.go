package router

import (
	"net/http"

	httpmiddleware "github.com/inkbook/studio-admin/internal/http/middleware"
)

// requireRoleForWrites lets any authenticated staff member read but limits
// mutating methods to roles.
func requireRoleForWrites(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gated := httpmiddleware.RequireRole(roles...)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				gated.ServeHTTP(w, r)
			}
		})
	}
}
