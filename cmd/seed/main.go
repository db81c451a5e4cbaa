// seed inserts development sample data for local testing: a dev org session
// policy and two memberships. If JWT_PRIVATE_KEY is set, it also mints a
// provider token for the dev admin so the API can be exercised with curl.
// Idempotent: policy and memberships are upserts.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"fieldops-session-control/internal/config"
	"fieldops-session-control/internal/db"
	membershipdomain "fieldops-session-control/internal/membership/domain"
	membershiprepo "fieldops-session-control/internal/membership/repository"
	"fieldops-session-control/internal/security"
	policydomain "fieldops-session-control/internal/sessionpolicy/domain"
	policyrepo "fieldops-session-control/internal/sessionpolicy/repository"
)

const (
	devOrgID         = "dev-org-001"
	devAdminID       = "dev-admin-001"
	devAgentID       = "dev-agent-001"
	devMembershipID  = "dev-membership-001"
	devMembership2ID = "dev-membership-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	policies := policyrepo.NewPostgresRepository(conn)
	devPolicy := policydomain.SessionPolicy{
		IdleTimeoutMinutes:     30,
		AbsoluteTimeoutHours:   24,
		MaxConcurrentSessions:  3,
		AllowMultipleDevices:   true,
		GeolocationTracking:    true,
		LockoutThreshold:       5,
		LockoutDurationMinutes: 15,
	}
	if err := policies.Upsert(ctx, devOrgID, devPolicy); err != nil {
		log.Fatalf("seed policy: %v", err)
	}

	memberships := membershiprepo.NewPostgresRepository(conn)
	for _, m := range []membershipdomain.Membership{
		{ID: devMembershipID, UserID: devAdminID, OrgID: devOrgID, Role: membershipdomain.RoleAdmin, CreatedAt: now},
		{ID: devMembership2ID, UserID: devAgentID, OrgID: devOrgID, Role: membershipdomain.RoleFieldAgent, CreatedAt: now},
	} {
		if err := memberships.Create(ctx, &m); err != nil {
			log.Fatalf("seed membership %s: %v", m.ID, err)
		}
	}

	log.Printf("seeded org %s with policy and memberships (%s admin, %s field_agent)", devOrgID, devAdminID, devAgentID)

	if cfg.JWTPrivateKey == "" {
		return
	}
	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey := privateKey.Public()
	issuer := security.NewTokenIssuer(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience)
	token, err := issuer.Issue(devAdminID, devOrgID, 24*time.Hour)
	if err != nil {
		log.Fatalf("mint dev token: %v", err)
	}
	fmt.Printf("dev token for %s (24h):\n%s\n", devAdminID, token)
}
