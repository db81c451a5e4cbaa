package rbac

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"fieldops-session-control/internal/membership/domain"
	"fieldops-session-control/internal/server/middleware"
)

type mockMembershipGetter struct {
	memberships map[string]*domain.Membership
	err         error
}

func (m *mockMembershipGetter) GetMembershipByUserAndOrg(_ context.Context, userID, orgID string) (*domain.Membership, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.memberships[userID+":"+orgID], nil
}

func ctxFor(userID, orgID string) context.Context {
	return middleware.WithIdentity(context.Background(), userID, orgID)
}

func TestRequireOrgAdminSuccess(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleRegionalManager} {
		getter := &mockMembershipGetter{memberships: map[string]*domain.Membership{
			"user-1:org-1": {ID: "m1", UserID: "user-1", OrgID: "org-1", Role: role},
		}}
		orgID, userID, err := RequireOrgAdmin(ctxFor("user-1", "org-1"), getter)
		if err != nil {
			t.Fatalf("role %s: RequireOrgAdmin: %v", role, err)
		}
		if orgID != "org-1" || userID != "user-1" {
			t.Errorf("role %s: got (%q, %q), want (org-1, user-1)", role, orgID, userID)
		}
	}
}

func TestRequireOrgAdminInsufficientRole(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleBranchManager, domain.RoleSupervisor, domain.RoleFieldAgent} {
		getter := &mockMembershipGetter{memberships: map[string]*domain.Membership{
			"user-1:org-1": {ID: "m1", UserID: "user-1", OrgID: "org-1", Role: role},
		}}
		_, _, err := RequireOrgAdmin(ctxFor("user-1", "org-1"), getter)
		var ae *AccessError
		if !errors.As(err, &ae) {
			t.Fatalf("role %s: err = %v, want AccessError", role, err)
		}
		if ae.Status != http.StatusForbidden {
			t.Errorf("role %s: status = %d, want 403", role, ae.Status)
		}
	}
}

func TestRequireManagerAllowsBranchManager(t *testing.T) {
	getter := &mockMembershipGetter{memberships: map[string]*domain.Membership{
		"user-1:org-1": {ID: "m1", UserID: "user-1", OrgID: "org-1", Role: domain.RoleBranchManager},
	}}
	if _, _, err := RequireManager(ctxFor("user-1", "org-1"), getter); err != nil {
		t.Fatalf("RequireManager: %v", err)
	}
}

func TestRequireRoleMissingIdentity(t *testing.T) {
	getter := &mockMembershipGetter{}
	_, _, err := RequireManager(context.Background(), getter)
	var ae *AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AccessError", err)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", ae.Status)
	}
}

func TestRequireRoleNonMember(t *testing.T) {
	getter := &mockMembershipGetter{}
	_, _, err := RequireManager(ctxFor("user-1", "org-1"), getter)
	var ae *AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AccessError", err)
	}
	if ae.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", ae.Status)
	}
}

func TestRequireRoleLookupError(t *testing.T) {
	getter := &mockMembershipGetter{err: errors.New("db down")}
	_, _, err := RequireManager(ctxFor("user-1", "org-1"), getter)
	var ae *AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AccessError", err)
	}
	if ae.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", ae.Status)
	}
}
