package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alarmapp "fleetwatch-cloud/internal/alarms/application"
	alarmrepo "fleetwatch-cloud/internal/alarms/infrastructure/postgres"
	alarmhttp "fleetwatch-cloud/internal/alarms/interfaces/http"
	alarmnotify "fleetwatch-cloud/internal/alarms/notify"
	apihttp "fleetwatch-cloud/internal/api/http"
	"fleetwatch-cloud/internal/audit"
	"fleetwatch-cloud/internal/auth"
	fleetrepo "fleetwatch-cloud/internal/fleet/infrastructure/postgres"
	"fleetwatch-cloud/internal/geotime"
	"fleetwatch-cloud/internal/observability/metrics"
	"fleetwatch-cloud/internal/telematics"
	telemetryrepo "fleetwatch-cloud/internal/telemetry/infrastructure/postgres"
	utilapp "fleetwatch-cloud/internal/utilization/application"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	deviceChecker := auth.NewDeviceChecker(db)
	auditRepo := audit.NewRepository(db)

	deviceRepo := fleetrepo.NewDeviceRepository(db)
	siteRepo := fleetrepo.NewGeoSiteRepository(db)
	prefRepo := fleetrepo.NewPreferenceRepository(db)
	settingsRepo := fleetrepo.NewSettingsRepository(db)
	sampleRepo := telemetryrepo.NewSampleRepository(db)
	usageRepo := telemetryrepo.NewUsageRepository(db)
	alarmStore := alarmrepo.NewAlarmRepository(db)

	localTime, err := geotime.NewResolver()
	if err != nil {
		logger.Fatalf("geotime resolver error: %v", err)
	}

	alarmBroker := alarmhttp.NewSSEBroker()
	alarmNotifiers := []alarmapp.AlarmNotifier{alarmBroker}
	if cfg.AlarmWebhookURL != "" {
		channel, err := alarmnotify.NewWebhookChannel(cfg.AlarmWebhookURL)
		if err != nil {
			logger.Fatalf("alarm webhook error: %v", err)
		}
		tpl, err := alarmnotify.NewTemplate(cfg.AlarmNotifyTemplate)
		if err != nil {
			logger.Fatalf("alarm template error: %v", err)
		}
		notifier, err := alarmnotify.NewNotifier(deviceRepo, alarmStore, channel, tpl,
			alarmnotify.WithEscalation(cfg.AlarmEscalationAfter),
			alarmnotify.WithCooldown(cfg.AlarmNotifyCooldown),
			alarmnotify.WithDedupeWindow(cfg.AlarmNotifyDedupeWindow),
			alarmnotify.WithRequestTimeout(cfg.AlarmNotifyTimeout),
		)
		if err != nil {
			logger.Fatalf("alarm notifier error: %v", err)
		}
		alarmNotifiers = append(alarmNotifiers, notifier)
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		publisher, err := alarmnotify.NewRedisPublisher(redisClient, logger)
		if err != nil {
			logger.Fatalf("redis publisher error: %v", err)
		}
		alarmNotifiers = append(alarmNotifiers, publisher)
	}

	lifecycle, err := alarmapp.NewLifecycle(alarmStore, cfg.TenantID,
		alarmapp.WithNotifier(alarmnotify.NewMultiNotifier(alarmNotifiers...)))
	if err != nil {
		logger.Fatalf("alarm lifecycle error: %v", err)
	}

	engineCfg, err := alarmapp.LoadConfig(cfg.EngineConfigPath)
	if err != nil {
		logger.Printf("engine config %q unusable, using defaults: %v", cfg.EngineConfigPath, err)
	}
	engine, err := alarmapp.NewEngine(
		lifecycle,
		deviceRepo,
		siteRepo,
		prefRepo,
		settingsRepo,
		sampleRepo,
		usageRepo,
		localTime,
		engineCfg,
		cfg.TenantID,
		logger,
	)
	if err != nil {
		logger.Fatalf("alarm engine error: %v", err)
	}

	trackerClient, err := telematics.NewClient(cfg.TrackerBaseURL, cfg.TrackerToken)
	if err != nil {
		logger.Fatalf("tracker client error: %v", err)
	}
	ingestStart := time.Now().UTC().Add(-cfg.IngestBackfill)
	ingestor, err := telematics.NewIngestor(trackerClient, sampleRepo, usageRepo, deviceRepo, ingestStart, logger)
	if err != nil {
		logger.Fatalf("ingestor error: %v", err)
	}

	go runEvery(cfg.IngestInterval, cfg.CycleTimeout, func(ctx context.Context) {
		if err := ingestor.RunOnce(ctx); err != nil {
			logger.Printf("ingest cycle error: %v", err)
		}
	})
	go runEvery(cfg.LiveEvalInterval, cfg.CycleTimeout, func(ctx context.Context) {
		if err := engine.EvaluateLive(ctx); err != nil {
			logger.Printf("live evaluation error: %v", err)
		}
	})
	go func() {
		// Each usage pass re-reads a one-interval overlap; the one-Active
		// invariant and the usage cooldown absorb the duplicates.
		since := time.Now().UTC().Add(-cfg.UsageEvalInterval)
		ticker := time.NewTicker(cfg.UsageEvalInterval)
		defer ticker.Stop()
		for tick := range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.CycleTimeout)
			if err := engine.EvaluateUsage(ctx, since); err != nil {
				logger.Printf("usage evaluation error: %v", err)
			} else {
				since = tick.UTC().Add(-cfg.UsageEvalInterval)
			}
			cancel()
		}
	}()

	rollup, err := utilapp.NewRollupService(usageRepo)
	if err != nil {
		logger.Fatalf("rollup service error: %v", err)
	}

	alarmHandler, err := alarmhttp.NewHandler(alarmStore, lifecycle, deviceChecker, auditRepo, logger)
	if err != nil {
		logger.Fatalf("alarm handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/devices", apihttp.NewDevicesHandler(deviceRepo))
	mux.Handle("/api/v1/alarms", alarmHandler)
	mux.Handle("/api/v1/alarms/", alarmHandler)
	mux.Handle("/api/v1/alarms/stream", alarmhttp.NewStreamHandler(alarmBroker))
	mux.Handle("/api/v1/utilization", apihttp.NewUtilizationHandler(rollup, deviceRepo))
	mux.Handle("/api/v1/reports/", apihttp.NewReportsHandler(alarmStore, rollup, deviceRepo))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func runEvery(interval, timeout time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		fn(ctx)
		cancel()
	}
}

type config struct {
	DatabaseURL             string
	HTTPAddr                string
	TenantID                string
	JWTSecret               string
	TrackerBaseURL          string
	TrackerToken            string
	RedisAddr               string
	EngineConfigPath        string
	AlarmWebhookURL         string
	AlarmNotifyTemplate     string
	AlarmEscalationAfter    time.Duration
	AlarmNotifyCooldown     time.Duration
	AlarmNotifyDedupeWindow time.Duration
	AlarmNotifyTimeout      time.Duration
	IngestInterval          time.Duration
	IngestBackfill          time.Duration
	LiveEvalInterval        time.Duration
	UsageEvalInterval       time.Duration
	CycleTimeout            time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:                getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		TrackerBaseURL:          getenvDefault("TRACKER_BASE_URL", ""),
		TrackerToken:            getenvDefault("TRACKER_TOKEN", ""),
		RedisAddr:               getenvDefault("REDIS_ADDR", ""),
		EngineConfigPath:        getenvDefault("ENGINE_CONFIG_PATH", ""),
		AlarmWebhookURL:         getenvDefault("ALARM_WEBHOOK_URL", ""),
		AlarmNotifyTemplate:     getenvDefault("ALARM_NOTIFY_TEMPLATE", ""),
		AlarmEscalationAfter:    getenvDuration("ALARM_ESCALATION_AFTER", 0),
		AlarmNotifyCooldown:     getenvDuration("ALARM_NOTIFY_COOLDOWN", 0),
		AlarmNotifyDedupeWindow: getenvDuration("ALARM_NOTIFY_DEDUP_WINDOW", 0),
		AlarmNotifyTimeout:      getenvDuration("ALARM_NOTIFY_TIMEOUT", 5*time.Second),
		IngestInterval:          getenvDuration("INGEST_INTERVAL", time.Minute),
		IngestBackfill:          getenvDuration("INGEST_BACKFILL", 24*time.Hour),
		LiveEvalInterval:        getenvDuration("LIVE_EVAL_INTERVAL", 5*time.Minute),
		UsageEvalInterval:       getenvDuration("USAGE_EVAL_INTERVAL", 30*time.Minute),
		CycleTimeout:            getenvDuration("CYCLE_TIMEOUT", 2*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.TrackerBaseURL == "" {
		log.Fatal("TRACKER_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
