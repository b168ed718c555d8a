package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/authn"
	"omnicorp.dev/authcore/internal/directory"
	"omnicorp.dev/authcore/internal/httpapi"
	"omnicorp.dev/authcore/internal/kvstore"
	"omnicorp.dev/authcore/internal/obs"
	"omnicorp.dev/authcore/internal/store/pg"
	"omnicorp.dev/authcore/internal/token"
)

var version = "0.3.0"

type config struct {
	listenAddr string

	signingSecret   string
	tokenTTLMinutes int

	directoryURL     string
	directoryDomain  string
	directoryBaseDN  string
	directoryTimeout time.Duration

	adminName string
	adminHash string

	cacheTTLHours int
	redisAddr     string
	pgDSN         string
}

func loadConfig() config {
	return config{
		listenAddr:       getenv("AUTHD_LISTEN_ADDR", ":8080"),
		signingSecret:    os.Getenv("AUTHD_SIGNING_SECRET"),
		tokenTTLMinutes:  getenvInt("AUTHD_TOKEN_TTL_MINUTES", 30),
		directoryURL:     os.Getenv("AUTHD_DIRECTORY_URL"),
		directoryDomain:  os.Getenv("AUTHD_DIRECTORY_DOMAIN"),
		directoryBaseDN:  os.Getenv("AUTHD_DIRECTORY_BASE_DN"),
		directoryTimeout: time.Duration(getenvInt("AUTHD_DIRECTORY_TIMEOUT_SECONDS", 10)) * time.Second,
		adminName:        getenv("AUTHD_ADMIN_NAME", authn.DefaultAdminName),
		adminHash:        os.Getenv("AUTHD_ADMIN_PASSWORD_HASH"),
		cacheTTLHours:    getenvInt("AUTHD_CACHE_TTL_HOURS", 24),
		redisAddr:        os.Getenv("AUTHD_REDIS_ADDR"),
		pgDSN:            os.Getenv("AUTHD_PG_DSN"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return n
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, getenv("AUTHD_COMMIT", "unknown"))

	cfg := loadConfig()
	if cfg.pgDSN == "" {
		log.Fatal("AUTHD_PG_DSN is required")
	}

	db, err := sql.Open("pgx", cfg.pgDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// The cache is optional: without Redis, resolution reads through to
	// the store on every request.
	var (
		cache *access.Cache
		kv    *kvstore.Redis
	)
	if cfg.redisAddr != "" {
		kv, err = kvstore.NewRedis(cfg.redisAddr)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		cache = access.NewCache(kv, time.Duration(cfg.cacheTTLHours)*time.Hour)
	}

	dir, err := directory.NewClient(directory.Config{
		URL:     cfg.directoryURL,
		Domain:  cfg.directoryDomain,
		BaseDN:  cfg.directoryBaseDN,
		Timeout: cfg.directoryTimeout,
	})
	if err != nil {
		log.Fatalf("directory client: %v", err)
	}

	verifier, err := authn.NewVerifier(cfg.adminName, cfg.adminHash, dir)
	if err != nil {
		log.Fatalf("credential verifier: %v", err)
	}

	issuer, err := token.NewIssuer(cfg.signingSecret,
		token.WithDefaultTTL(time.Duration(cfg.tokenTTLMinutes)*time.Minute))
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	store := pg.New(db)
	resolver, err := access.NewResolver(store, cache)
	if err != nil {
		log.Fatalf("permission resolver: %v", err)
	}
	gate, err := access.NewGate(issuer, store, resolver)
	if err != nil {
		log.Fatalf("authorization gate: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: db}
	if kv != nil {
		probe.Cache = kv
	}
	api := httpapi.New(verifier, issuer, gate, probe, version)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting authd %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	if kv != nil {
		_ = kv.Close()
	}
	log.Println("Stopped")
}
