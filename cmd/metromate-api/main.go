package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/metromate/internal/auth"
	"github.com/MarcoPoloResearchLab/metromate/internal/config"
	"github.com/MarcoPoloResearchLab/metromate/internal/database"
	"github.com/MarcoPoloResearchLab/metromate/internal/discovery"
	"github.com/MarcoPoloResearchLab/metromate/internal/identity"
	"github.com/MarcoPoloResearchLab/metromate/internal/ids"
	"github.com/MarcoPoloResearchLab/metromate/internal/logging"
	"github.com/MarcoPoloResearchLab/metromate/internal/messaging"
	"github.com/MarcoPoloResearchLab/metromate/internal/metrics"
	"github.com/MarcoPoloResearchLab/metromate/internal/people"
	"github.com/MarcoPoloResearchLab/metromate/internal/profiles"
	"github.com/MarcoPoloResearchLab/metromate/internal/server"
	"github.com/MarcoPoloResearchLab/metromate/internal/social"
	"github.com/MarcoPoloResearchLab/metromate/internal/tracing"
	"github.com/MarcoPoloResearchLab/metromate/internal/trips"
	"github.com/MarcoPoloResearchLab/metromate/internal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "metromate-api",
		Short: "MetroMate commuter backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("session-data-url", defaults.GetString("identity.session_data_url"), "Identity provider session-data endpoint")
	cmd.PersistentFlags().Duration("session-ttl", defaults.GetDuration("session.ttl"), "Session lifetime")
	cmd.PersistentFlags().String("signing-secret", "", "Secret for minting session tokens when the provider omits one")
	cmd.PersistentFlags().String("allowed-origins", defaults.GetString("cors.allowed_origins"), "Comma separated CORS origins, * echoes the caller")
	cmd.PersistentFlags().String("otlp-endpoint", "", "OTLP/HTTP trace collector URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "identity.session_data_url", "session-data-url")
	bindFlag(cmd, "session.ttl", "session-ttl")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
	bindFlag(cmd, "tracing.otlp_endpoint", "otlp-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tracerProvider, shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:  "metromate-api",
		OTLPEndpoint: appConfig.TracingOTLPEndpoint,
		SampleRatio:  appConfig.TracingSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := ids.NewUUIDProvider()

	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}

	exchanger, err := identity.NewClient(identity.ClientConfig{
		SessionDataURL: appConfig.IdentitySessionURL,
		Timeout:        appConfig.IdentityTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	var minter auth.TokenMinter
	if appConfig.SessionSigningSecret != "" {
		minter = auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(appConfig.SessionSigningSecret),
			TokenTTL:      appConfig.SessionTTL,
			Clock:         time.Now,
			IDProvider:    idProvider,
		})
	} else {
		logger.Warn("session signing secret not configured; sessions require a provider token")
	}

	sessionService, err := auth.NewSessionService(auth.SessionServiceConfig{
		Database:  db,
		Exchanger: exchanger,
		Users:     userService,
		Minter:    minter,
		TTL:       appConfig.SessionTTL,
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db, Clock: time.Now, Logger: logger})
	if err != nil {
		return err
	}
	tripService, err := trips.NewService(trips.ServiceConfig{Database: db, Clock: time.Now, IDProvider: idProvider, Logger: logger})
	if err != nil {
		return err
	}
	socialService, err := social.NewService(social.ServiceConfig{Database: db, Clock: time.Now, IDProvider: idProvider, Logger: logger})
	if err != nil {
		return err
	}
	messageService, err := messaging.NewService(messaging.ServiceConfig{Database: db, Clock: time.Now, IDProvider: idProvider, Logger: logger})
	if err != nil {
		return err
	}
	directory, err := people.NewDirectory(userService, profileService)
	if err != nil {
		return err
	}
	discoveryService, err := discovery.NewService(profileService, tripService, userService)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:          sessionService,
		Profiles:          profileService,
		Trips:             tripService,
		Social:            socialService,
		Messages:          messageService,
		Discovery:         discoveryService,
		People:            directory,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		TracerProvider:    tracerProvider,
		SessionCookieName: appConfig.SessionCookieName,
		AllowedOrigins:    appConfig.AllowedOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: appConfig.RateLimitPerSecond,
			Burst:             appConfig.RateLimitBurst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
