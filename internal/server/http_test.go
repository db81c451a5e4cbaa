package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	membershipdomain "fieldops-session-control/internal/membership/domain"
	"fieldops-session-control/internal/security"
	"fieldops-session-control/internal/securityevent"
	eventdomain "fieldops-session-control/internal/securityevent/domain"
	eventrepo "fieldops-session-control/internal/securityevent/repository"
	"fieldops-session-control/internal/session/domain"
	sessionservice "fieldops-session-control/internal/session/service"
	policydomain "fieldops-session-control/internal/sessionpolicy/domain"

	devicedomain "fieldops-session-control/internal/device/domain"
)

// In-memory repositories backing the router under test.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (r *memSessionRepo) GetActiveByUserAndTokenHash(_ context.Context, userID, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Active && s.UserID == userID && s.TokenHash == tokenHash {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) GetActiveByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Active && s.TokenHash == tokenHash {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) CountActiveByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.Active && s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) OldestActiveByUser(_ context.Context, userID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Session
	for _, s := range r.sessions {
		if !s.Active || s.UserID != userID {
			continue
		}
		if oldest == nil || s.LoginAt.Before(oldest.LoginAt) ||
			(s.LoginAt.Equal(oldest.LoginAt) && s.ID < oldest.ID) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, nil
	}
	c := *oldest
	return &c, nil
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Active && existing.UserID == s.UserID && existing.TokenHash == s.TokenHash {
			return false, nil
		}
	}
	c := *s
	r.sessions[s.ID] = &c
	return true, nil
}

func (r *memSessionRepo) Terminate(_ context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	s.Reason = reason
	s.DurationSeconds = int64(at.Sub(s.LoginAt) / time.Second)
	return true, nil
}

func (r *memSessionRepo) TerminateAllByUser(_ context.Context, userID, exceptID string, reason domain.TerminationReason, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Active && s.UserID == userID && s.ID != exceptID {
			s.Active = false
			s.Reason = reason
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) UpdateLastActivity(_ context.Context, tokenHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Active && s.TokenHash == tokenHash {
			s.LastActivityAt = at
		}
	}
	return nil
}

func (r *memSessionRepo) ListActiveByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.Active && s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.Before(out[j].LoginAt) })
	return out, nil
}

func (r *memSessionRepo) ListByOrg(_ context.Context, orgID string, userID *string, limit, offset int32) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if !s.Active || s.OrgID != orgID {
			continue
		}
		if userID != nil && s.UserID != *userID {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.After(out[j].LoginAt) })
	return out, nil
}

func (r *memSessionRepo) ListHistoryByUser(_ context.Context, userID string, limit, offset int32) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.After(out[j].LoginAt) })
	return out, nil
}

func (r *memSessionRepo) TerminateExpired(context.Context, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*eventdomain.SecurityEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*eventdomain.SecurityEvent)}
}

func (r *memEventRepo) GetByID(_ context.Context, id string) (*eventdomain.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (r *memEventRepo) Create(_ context.Context, e *eventdomain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.events[e.ID] = &c
	return nil
}

func (r *memEventRepo) ListByOrg(_ context.Context, orgID string, f eventrepo.Filter, limit, offset int32) ([]*eventdomain.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*eventdomain.SecurityEvent
	for _, e := range r.events {
		if e.OrgID != orgID {
			continue
		}
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.Severity != "" && e.Severity != f.Severity {
			continue
		}
		if f.Resolved != nil && e.Resolved != *f.Resolved {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *memEventRepo) Resolve(_ context.Context, id, resolvedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.Resolved {
		return false, nil
	}
	now := time.Now().UTC()
	e.Resolved = true
	e.ResolvedBy = resolvedBy
	e.ResolvedAt = &now
	return true, nil
}

type memPolicyRepo struct {
	mu       sync.Mutex
	policies map[string]policydomain.SessionPolicy
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{policies: make(map[string]policydomain.SessionPolicy)}
}

func (r *memPolicyRepo) GetByOrgID(_ context.Context, orgID string) (*policydomain.SessionPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[orgID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *memPolicyRepo) Upsert(_ context.Context, orgID string, p policydomain.SessionPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[orgID] = p.Normalize()
	return nil
}

type memMembershipGetter struct {
	memberships map[string]*membershipdomain.Membership
}

func (m *memMembershipGetter) GetMembershipByUserAndOrg(_ context.Context, userID, orgID string) (*membershipdomain.Membership, error) {
	return m.memberships[userID+":"+orgID], nil
}

type apiFixture struct {
	srv      *httptest.Server
	verifier *security.TokenVerifier
	sessions *memSessionRepo
	events   *memEventRepo
	devices  *memDeviceRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := security.NewTokenIssuer(key, key.Public(), "fieldops-idp", "fieldops-api")

	sessions := newMemSessionRepo()
	events := newMemEventRepo()
	devices := &memDeviceRepo{devices: map[string]*devicedomain.Device{}}
	policies := newMemPolicyRepo()
	memberships := &memMembershipGetter{memberships: map[string]*membershipdomain.Membership{
		"admin-1:org-1": {ID: "m1", UserID: "admin-1", OrgID: "org-1", Role: membershipdomain.RoleAdmin},
		"agent-1:org-1": {ID: "m2", UserID: "agent-1", OrgID: "org-1", Role: membershipdomain.RoleFieldAgent},
	}}

	lifecycle := sessionservice.NewLifecycleService(
		sessions, devices, policies,
		securityevent.NewLogger(events), verifier, nil)

	router := NewRouter(Deps{
		Lifecycle:   lifecycle,
		SessionRepo: sessions,
		EventRepo:   events,
		DeviceRepo:  devices,
		PolicyRepo:  policies,
		Memberships: memberships,
		Verifier:    verifier,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, verifier: verifier, sessions: sessions, events: events, devices: devices}
}

type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*devicedomain.Device
}

func (r *memDeviceRepo) GetByUserOrgAndFingerprint(_ context.Context, userID, orgID, hash string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[userID+"|"+orgID+"|"+hash]; ok {
		c := *d
		return &c, nil
	}
	return nil, nil
}

func (r *memDeviceRepo) Create(_ context.Context, d *devicedomain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.devices[d.UserID+"|"+d.OrgID+"|"+d.FingerprintHash] = &c
	return nil
}

func (r *memDeviceRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }

func (r *memDeviceRepo) GetByID(_ context.Context, id string) (*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.ID == id {
			c := *d
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memDeviceRepo) ListByUserAndOrg(_ context.Context, userID, orgID string) ([]*devicedomain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*devicedomain.Device
	for _, d := range r.devices {
		if d.UserID == userID && d.OrgID == orgID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memDeviceRepo) SetTrusted(_ context.Context, id string, trusted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.ID == id {
			d.Trusted = trusted
		}
	}
	return nil
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, "org-1", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateSessionRequiresBearer(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/sessions", "", map[string]any{"user_id": "agent-1"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "agent-1")

	resp := f.do(t, http.MethodPost, "/v1/sessions", token, map[string]any{
		"user_id":     "agent-1",
		"device_name": "Field Tablet",
		"fingerprint": map[string]any{"browser": "Firefox", "os": "Linux"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[map[string]any](t, resp)
	if created["user_id"] != "agent-1" || created["active"] != true {
		t.Errorf("created session = %v", created)
	}
	if _, hasHash := created["token_hash"]; hasHash {
		t.Error("token_hash exposed in API response")
	}

	resp = f.do(t, http.MethodPost, "/v1/sessions/validate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("validate status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/v1/sessions/heartbeat", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("heartbeat status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/v1/me/sessions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me/sessions status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodDelete, "/v1/sessions/current", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("logout status = %d, want 200", resp.StatusCode)
	}

	// After logout the token still verifies, but the session row is gone.
	resp = f.do(t, http.MethodPost, "/v1/sessions/validate", token, nil)
	if resp.StatusCode != http.StatusGone {
		t.Errorf("validate after logout status = %d, want 410", resp.StatusCode)
	}

	// Logout again is a no-op success.
	resp = f.do(t, http.MethodDelete, "/v1/sessions/current", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("repeat logout status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRoutesRejectBadToken(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/v1/sessions/validate", "/v1/sessions/heartbeat"} {
		resp := f.do(t, http.MethodPost, path, "not-a-token", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, resp.StatusCode)
		}
	}
	resp := f.do(t, http.MethodGet, "/v1/me/sessions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", resp.StatusCode)
	}
}

func TestOrgSessionListRequiresManagerRole(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/sessions", f.token(t, "agent-1"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("field agent list status = %d, want 403", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/v1/sessions", f.token(t, "admin-1"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin list status = %d, want 200", resp.StatusCode)
	}
}

func TestAdminTerminateSession(t *testing.T) {
	f := newAPIFixture(t)
	agentToken := f.token(t, "agent-1")
	resp := f.do(t, http.MethodPost, "/v1/sessions", agentToken, map[string]any{"user_id": "agent-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[map[string]any](t, resp)
	id, _ := created["id"].(string)

	adminToken := f.token(t, "admin-1")
	resp = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/terminate", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("terminate status = %d, want 200", resp.StatusCode)
	}

	stored := f.sessions.sessions[id]
	if stored.Active {
		t.Error("session still active after admin terminate")
	}
	if stored.Reason != domain.ReasonAdminTerminated {
		t.Errorf("reason = %q, want admin_terminated", stored.Reason)
	}
	// Admin termination must not create a security event.
	if n := len(f.events.events); n != 0 {
		t.Errorf("security events after admin terminate = %d, want 0", n)
	}

	resp = f.do(t, http.MethodPost, "/v1/sessions/no-such-id/terminate", adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("terminate unknown id status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminTerminateForbiddenForAgent(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/sessions/some-id/terminate", f.token(t, "agent-1"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLogoutEverywhereElse(t *testing.T) {
	f := newAPIFixture(t)
	// Three logins for the same user with distinct tokens.
	tokens := []string{f.token(t, "agent-1"), f.token(t, "agent-1"), f.token(t, "agent-1")}
	for i, tok := range tokens {
		resp := f.do(t, http.MethodPost, "/v1/sessions", tok, map[string]any{"user_id": "agent-1"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, resp.StatusCode)
		}
		// Distinct login instants keep eviction ordering deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	resp := f.do(t, http.MethodPost, "/v1/users/agent-1/sessions/terminate", tokens[2],
		map[string]any{"keep_current": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[map[string]any](t, resp)
	if got := out["terminated_count"].(float64); got != 2 {
		t.Errorf("terminated_count = %v, want 2", got)
	}

	resp = f.do(t, http.MethodPost, "/v1/sessions/validate", tokens[2], nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("kept session validate status = %d, want 200", resp.StatusCode)
	}
	resp = f.do(t, http.MethodPost, "/v1/sessions/validate", tokens[0], nil)
	if resp.StatusCode != http.StatusGone {
		t.Errorf("terminated session validate status = %d, want 410", resp.StatusCode)
	}
}

func TestSecurityEventListAndResolve(t *testing.T) {
	f := newAPIFixture(t)
	agentToken := f.token(t, "agent-1")
	resp := f.do(t, http.MethodPost, "/v1/sessions", agentToken, map[string]any{
		"user_id":     "agent-1",
		"fingerprint": map[string]any{"browser": "Firefox", "os": "Linux"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	adminToken := f.token(t, "admin-1")
	resp = f.do(t, http.MethodGet, "/v1/security-events", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	list := decodeBody[map[string][]map[string]any](t, resp)
	events := list["events"]
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (new_device_login)", len(events))
	}
	if events[0]["type"] != "new_device_login" {
		t.Errorf("event type = %v, want new_device_login", events[0]["type"])
	}
	id, _ := events[0]["id"].(string)

	resp = f.do(t, http.MethodPost, "/v1/security-events/"+id+"/resolve", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[map[string]bool](t, resp)
	if !out["resolved"] {
		t.Error("resolved = false, want true")
	}

	// Resolving again reports false.
	resp = f.do(t, http.MethodPost, "/v1/security-events/"+id+"/resolve", adminToken, nil)
	out = decodeBody[map[string]bool](t, resp)
	if out["resolved"] {
		t.Error("second resolve = true, want false")
	}
}

func TestDeviceRegistryAndTrust(t *testing.T) {
	f := newAPIFixture(t)
	agentToken := f.token(t, "agent-1")
	resp := f.do(t, http.MethodPost, "/v1/sessions", agentToken, map[string]any{
		"user_id":     "agent-1",
		"device_name": "Field Tablet",
		"fingerprint": map[string]any{"browser": "Firefox", "os": "Linux"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/v1/me/devices", agentToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list devices status = %d, want 200", resp.StatusCode)
	}
	list := decodeBody[map[string][]map[string]any](t, resp)
	devices := list["devices"]
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}
	if devices[0]["trusted"] != false {
		t.Error("fresh device already trusted")
	}
	id, _ := devices[0]["id"].(string)

	// Trust marking is admin-only.
	resp = f.do(t, http.MethodPost, "/v1/devices/"+id+"/trust", agentToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("agent trust status = %d, want 403", resp.StatusCode)
	}

	adminToken := f.token(t, "admin-1")
	resp = f.do(t, http.MethodPost, "/v1/devices/"+id+"/trust", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trust status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[map[string]any](t, resp)
	if out["trusted"] != true {
		t.Error("trusted = false after trust call")
	}

	resp = f.do(t, http.MethodPost, "/v1/devices/no-such-device/trust", adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionPolicyRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.token(t, "admin-1")

	// No stored policy: defaults.
	resp := f.do(t, http.MethodGet, "/v1/session-policy", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	got := decodeBody[policydomain.SessionPolicy](t, resp)
	if got != policydomain.Default() {
		t.Errorf("default policy = %+v, want %+v", got, policydomain.Default())
	}

	resp = f.do(t, http.MethodPut, "/v1/session-policy", adminToken, policydomain.SessionPolicy{
		IdleTimeoutMinutes:    10,
		AbsoluteTimeoutHours:  8,
		MaxConcurrentSessions: 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/v1/session-policy", adminToken, nil)
	got = decodeBody[policydomain.SessionPolicy](t, resp)
	if got.IdleTimeoutMinutes != 10 || got.MaxConcurrentSessions != 1 {
		t.Errorf("updated policy = %+v", got)
	}

	// Field agents cannot update policy.
	resp = f.do(t, http.MethodPut, "/v1/session-policy", f.token(t, "agent-1"), policydomain.Default())
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("agent put status = %d, want 403", resp.StatusCode)
	}
}

func TestAuthFailureLockout(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 5; i++ {
		resp := f.do(t, http.MethodPost, "/v1/auth/failures", "",
			map[string]any{"org_id": "org-1", "user_id": "agent-1"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("failure %d status = %d, want 200", i+1, resp.StatusCode)
		}
		out := decodeBody[map[string]bool](t, resp)
		if want := i == 4; out["locked"] != want {
			t.Errorf("failure %d: locked = %v, want %v", i+1, out["locked"], want)
		}
	}
	// The lockout left a durable high-severity event.
	found := false
	for _, e := range f.events.events {
		if e.Type == eventdomain.EventLoginLockout {
			found = true
			if e.Severity != eventdomain.SeverityHigh {
				t.Errorf("lockout severity = %q, want high", e.Severity)
			}
		}
	}
	if !found {
		t.Error("no login_lockout event recorded")
	}
}
