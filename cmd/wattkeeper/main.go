// Command wattkeeper is the smart-meter telemetry server: it accepts
// meter connections over TCP, authenticates them, streams running
// bills back, and fans grid-incident alerts out to every connected
// meter.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frameworks/api_wattmeter/internal/alerts"
	"frameworks/api_wattmeter/internal/authsvc"
	"frameworks/api_wattmeter/internal/config"
	"frameworks/api_wattmeter/internal/database"
	"frameworks/api_wattmeter/internal/gridsignal"
	"frameworks/api_wattmeter/internal/logging"
	"frameworks/api_wattmeter/internal/monitoring"
	"frameworks/api_wattmeter/internal/seed"
	"frameworks/api_wattmeter/internal/session"
	"frameworks/api_wattmeter/internal/transport"
	"frameworks/api_wattmeter/internal/version"

	"github.com/gin-gonic/gin"
)

func main() {
	logger := logging.NewLoggerWithService("wattkeeper")
	config.LoadEnv(logger)

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
	}).Info("starting wattkeeper")

	addr := config.GetEnv("ADDR", "127.0.0.1:8080")
	httpAddr := config.GetEnv("HTTP_ADDR", "127.0.0.1:9090")
	nclient := config.GetEnvInt("NCLIENT", 128)
	pricePerUnit := config.GetEnvFloat("UNIT_COST", 0.2)
	dailyStandingCharge := config.GetEnvFloat("STANDING_CHARGE", 0.4)

	db, healthCheck, closeDB := buildDatabase(logger)
	defer closeDB()

	if _, usingPostgres := db.(*database.PostgresStore); !usingPostgres {
		if err := seed.Seed(context.Background(), db, nclient, pricePerUnit, dailyStandingCharge); err != nil {
			logger.WithError(err).Fatal("failed to seed demo clients")
		}
		logger.WithField("count", nclient).Info("seeded demo clients")
	}

	metrics := monitoring.NewMetrics()
	store := alerts.NewWithMetrics(alerts.MetricsHooks{
		OnSubscriberCountChanged: func(count int) { metrics.AlertSubscribers.Set(float64(count)) },
		OnBroadcast:              func() { metrics.AlertsBroadcast.Inc() },
	})
	healthChecker := monitoring.NewHealthChecker("wattkeeper", version.Version)
	healthChecker.AddCheck("database", healthCheck)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineMetrics := &session.Metrics{
		SessionsActive: metrics.SessionsActive,
		ReadingsTotal:  metrics.ReadingsTotal,
		BillsTotal:     metrics.BillsTotal,
		AuthFailures:   metrics.AuthFailures,
	}
	engine := session.New(db, store, authsvc.Bcrypt{}, logger, session.DefaultConfig(pricePerUnit, dailyStandingCharge), engineMetrics)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind TCP listener")
	}
	logger.WithField("addr", addr).Info("listening for meter connections")

	go transport.Serve(ctx, ln, engine.Run, logger)
	go gridsignal.Run(ctx, store, logger, syscall.SIGUSR1)

	httpServer := &http.Server{Addr: httpAddr, Handler: buildRouter(healthChecker, metrics)}
	go func() {
		logger.WithField("addr", httpAddr).Info("serving health and metrics")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health/metrics server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	_ = ln.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health/metrics server forced to shutdown")
	}

	logger.Info("shutdown complete")
}

// buildDatabase wires the Port to Postgres when DATABASE_URL is set,
// falling back to the in-memory reference implementation otherwise.
func buildDatabase(logger logging.Logger) (db database.Port, healthCheck monitoring.HealthCheck, closeFn func()) {
	url := config.GetEnv("DATABASE_URL", "")
	if url == "" {
		mem := database.NewInMemoryStore()
		return mem, func() monitoring.CheckResult {
			return monitoring.CheckResult{Status: monitoring.StatusHealthy}
		}, func() {}
	}

	pg, err := database.NewPostgresStore(database.DefaultPostgresConfig(url), logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	check := func() monitoring.CheckResult {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			return monitoring.CheckResult{Status: monitoring.StatusUnhealthy, Message: err.Error()}
		}
		return monitoring.CheckResult{Status: monitoring.StatusHealthy}
	}
	return pg, check, func() { _ = pg.Close() }
}

func buildRouter(hc *monitoring.HealthChecker, m *monitoring.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", hc.Handler())
	router.GET("/metrics", m.Handler())
	return router
}
