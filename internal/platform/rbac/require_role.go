// Package rbac resolves the caller's org role for access checks on the
// admin-facing session and security-event endpoints.
package rbac

import (
	"context"
	"net/http"

	"fieldops-session-control/internal/membership/domain"
	"fieldops-session-control/internal/server/middleware"
)

// OrgMembershipGetter returns a user's membership in an org. Used to resolve
// the caller's role.
type OrgMembershipGetter interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
}

// AccessError carries the HTTP status a failed access check maps to.
type AccessError struct {
	Status int
	Msg    string
}

func (e *AccessError) Error() string { return e.Msg }

// RequireRole ensures the caller is authenticated and holds at least minRole
// in the context org. Returns (orgID, userID, nil) on success; on failure the
// error is an *AccessError with the HTTP status to return.
func RequireRole(ctx context.Context, getter OrgMembershipGetter, minRole domain.Role) (orgID, userID string, err error) {
	orgID, okOrg := middleware.GetOrgID(ctx)
	userID, okUser := middleware.GetUserID(ctx)
	if !okOrg || orgID == "" || !okUser || userID == "" {
		return "", "", &AccessError{Status: http.StatusUnauthorized, Msg: "org and user context required"}
	}
	m, err := getter.GetMembershipByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return "", "", &AccessError{Status: http.StatusInternalServerError, Msg: "failed to resolve membership"}
	}
	if m == nil {
		return "", "", &AccessError{Status: http.StatusForbidden, Msg: "not a member of this organization"}
	}
	if !m.Role.AtLeast(minRole) {
		return "", "", &AccessError{Status: http.StatusForbidden, Msg: "insufficient role"}
	}
	return orgID, userID, nil
}

// RequireManager ensures the caller holds branch_manager or above. Managers
// can view org sessions and security events.
func RequireManager(ctx context.Context, getter OrgMembershipGetter) (orgID, userID string, err error) {
	return RequireRole(ctx, getter, domain.RoleBranchManager)
}

// RequireOrgAdmin ensures the caller holds regional_manager or above.
// Required for terminating other users' sessions and resolving events.
func RequireOrgAdmin(ctx context.Context, getter OrgMembershipGetter) (orgID, userID string, err error) {
	return RequireRole(ctx, getter, domain.RoleRegionalManager)
}
