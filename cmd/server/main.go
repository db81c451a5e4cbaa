package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fieldops-session-control/internal/config"
	"fieldops-session-control/internal/db"
	devicerepo "fieldops-session-control/internal/device/repository"
	"fieldops-session-control/internal/geoip"
	membershiprepo "fieldops-session-control/internal/membership/repository"
	"fieldops-session-control/internal/security"
	"fieldops-session-control/internal/securityevent"
	eventrepo "fieldops-session-control/internal/securityevent/repository"
	"fieldops-session-control/internal/server"
	sessionrepo "fieldops-session-control/internal/session/repository"
	sessionservice "fieldops-session-control/internal/session/service"
	policyrepo "fieldops-session-control/internal/sessionpolicy/repository"
	"fieldops-session-control/internal/telemetry"
	telemetryotel "fieldops-session-control/internal/telemetry/otel"
	"fieldops-session-control/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.JWTPublicKey == "" {
		log.Fatal("JWT_PUBLIC_KEY is not set; the server cannot verify provider tokens without it")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	verifier := security.NewTokenVerifier(publicKey, cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "fsc-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
	}

	sessions := sessionrepo.NewPostgresRepository(conn)
	devices := devicerepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)
	events := eventrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)

	eventLogger := securityevent.NewLogger(events)
	geo := geoip.NewClient(cfg.GeoIPBaseURL, cfg.GeoIPLookupTimeout())
	lifecycle := sessionservice.NewLifecycleService(sessions, devices, policies, eventLogger, verifier, geo)

	sweeper := sessionservice.NewSweeper(sessions, cfg.SessionSweepInterval())
	go sweeper.Run(ctx)

	var kafkaEmitter telemetry.EventEmitter
	if kafkaProducer != nil {
		kafkaEmitter = kafkaProducer
	}
	emitter := telemetry.NewMultiEmitter(kafkaEmitter, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	router := server.NewRouter(server.Deps{
		Lifecycle:    lifecycle,
		SessionRepo:  sessions,
		EventRepo:    events,
		DeviceRepo:   devices,
		PolicyRepo:   policies,
		Memberships:  memberships,
		Verifier:     verifier,
		Telemetry:    emitter,
		HealthPinger: conn,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "fsc.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	cancel()

	// Let in-flight async telemetry emits finish before tearing down OTel.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
