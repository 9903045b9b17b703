package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/go-redis/redis/v8"
	"github.com/irsalhamdi/course-storefront/api"
	"github.com/irsalhamdi/course-storefront/api/background"
	"github.com/irsalhamdi/course-storefront/broker"
	"github.com/irsalhamdi/course-storefront/config"
	"github.com/irsalhamdi/course-storefront/core/auth"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/entitlement"
	"github.com/irsalhamdi/course-storefront/core/payment"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/irsalhamdi/course-storefront/rate"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "STOREFRONT"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if err == conf.ErrHelpWanted {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	logger.Infof("startup config:\n%s", out)

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	if cfg.DB.Migrate {
		if err := database.Migrate(database.URL(cfg.DB)); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime
	sessionManager.Cookie.Secure = cfg.Session.Secure
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	bg := background.New(logger)

	var pub entitlement.Publisher = broker.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := broker.NewKafka(broker.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		defer k.Close()
		pub = k
	}

	var dedupe payment.Deduper = payment.NopDeduper{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("redis unreachable, webhook replays rely on the database: %v", err)
		}
		dedupe = payment.NewRedisDeduper(rdb, cfg.Redis.KeyPrefix, cfg.Redis.EventTTL)
	}

	rp := cfg.Razorpay
	if rp.KeyID == "" || rp.KeySecret == "" {
		logger.Warn("razorpay keys not configured, checkout will fail until they are set")
	}
	payments := payment.NewHandlers(
		payment.Config{
			KeyID:         rp.KeyID,
			KeySecret:     rp.KeySecret,
			WebhookSecret: rp.WebhookSecret,
			Currency:      rp.Currency,
			SuccessPath:   rp.SuccessPath,
		},
		payment.NewRazorpay(rp.KeyID, rp.KeySecret),
		course.Catalog{DB: db},
		entitlement.NewService(db, pub, bg, logger),
		dedupe,
		logger,
	)

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Every, cfg.Rate.Expiry)
	defer limiter.Stop()

	oauthProvs := map[string]auth.Provider{}
	if google := cfg.Oauth.Google; google.Client != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Oauth.DiscoveryTimeout)
		defer cancel()

		oauthProvs, err = auth.MakeProviders(ctx, []auth.ProviderConfig{
			{Name: "google", Client: google.Client, Secret: google.Secret, URL: google.URL, RedirectURL: google.RedirectURL},
		})
		if err != nil {
			return fmt.Errorf("failed to discover oauth providers: %w", err)
		}
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:       cfg.Cors.Origin,
		Log:              logger,
		DB:               db,
		Session:          sessionManager,
		Payments:         payments,
		Limiter:          limiter,
		Providers:        oauthProvs,
		LoginRedirectURL: cfg.Oauth.LoginRedirectURL,
		AdminEmail:       cfg.Auth.AdminEmail,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
