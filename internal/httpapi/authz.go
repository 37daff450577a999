package httpapi

import (
	"context"
	"errors"
	"net/http"

	"enlace.org/internal/auth"
	"enlace.org/internal/content"
)

// Middleware is a standard handler wrapper.
type Middleware func(http.Handler) http.Handler

// RequireRole admits principals whose role is in the allowed set. A principal
// without a role (municipality, company) is always a 403, never a type error.
func RequireRole(roles ...auth.Role) Middleware {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if principal.Role == "" {
				writeError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				writeError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireEntityType admits principals by kind. SUPERADMIN is a role, not a
// kind: it does not bypass entity-type gates. The asymmetry with RequireRole
// composites is intentional.
func RequireEntityType(kinds ...auth.Kind) Middleware {
	allowed := make(map[auth.Kind]struct{}, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if _, ok := allowed[principal.Kind]; !ok {
				writeError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Composite role gates. Each includes SUPERADMIN as an implicit override.

// RequireSuperadmin admits SUPERADMIN users only.
func RequireSuperadmin() Middleware {
	return RequireRole(auth.RoleSuperadmin)
}

// RequireOrganization admits organization-type user roles.
func RequireOrganization() Middleware {
	return RequireRole(
		auth.RoleCompanies,
		auth.RoleMunicipalGovernments,
		auth.RoleTrainingCenters,
		auth.RoleNGOsAndFoundations,
		auth.RoleSuperadmin,
	)
}

// RequireStudent admits student-type user roles.
func RequireStudent() Middleware {
	return RequireRole(auth.RoleYouth, auth.RoleAdolescents, auth.RoleSuperadmin)
}

// RequireInstructor admits instructors.
func RequireInstructor() Middleware {
	return RequireRole(auth.RoleInstructor, auth.RoleSuperadmin)
}

// OwnerLookup resolves a resource's owner fields by id.
type OwnerLookup func(ctx context.Context, id string) (content.Owner, error)

// RequireOwnership admits the owner of the resource named by the path
// parameter. SUPERADMIN bypasses the lookup entirely. Owner fields are read
// in priority order: userId, then studentId, then authorId.
func RequireOwnership(lookup OwnerLookup, param string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if principal.IsSuperadmin() {
				next.ServeHTTP(w, r)
				return
			}
			owner, err := lookup(r.Context(), r.PathValue(param))
			if err != nil {
				if errors.Is(err, content.ErrNotFound) {
					writeError(w, r, http.StatusNotFound, "resource not found")
					return
				}
				writeError(w, r, http.StatusInternalServerError, "ownership check failed")
				return
			}
			if owner.ID() == "" || owner.ID() != principal.ID {
				writeError(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
