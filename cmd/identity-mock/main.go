package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/workshop/vehicleapi/internal/discovery"
	"github.com/workshop/vehicleapi/internal/identitymock"
	"github.com/workshop/vehicleapi/internal/logger"
)

type mockConfig struct {
	Port         string        `env:"IDENTITY_PORT,default=8081"`
	Secret       string        `env:"IDENTITY_JWT_SECRET,default=dev-secret"`
	TokenTTL     time.Duration `env:"IDENTITY_TOKEN_TTL,default=1h"`
	ServiceName  string        `env:"AUTH_SERVICE_NAME,default=workshop-users-api"`
	ValidatePath string        `env:"AUTH_VALIDATE_TOKEN_API_URL,default=/api/v1/user/validateToken"`
	AdvertiseURL string        `env:"IDENTITY_ADVERTISE_URL"`
	RedisAddr    string        `env:"REDIS_ADDR"`
	LogLevel     string        `env:"LOG_LEVEL,default=info"`
}

var cfg mockConfig

var rootCmd = &cobra.Command{
	Use:          "identity-mock",
	Short:        "Development identity service issuing and validating tokens",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		if secret, _ := cmd.Flags().GetString("secret"); secret != "" {
			cfg.Secret = secret
		}
		if advertise, _ := cmd.Flags().GetString("advertise-url"); advertise != "" {
			cfg.AdvertiseURL = advertise
		}
		if cfg.AdvertiseURL == "" {
			cfg.AdvertiseURL = "http://localhost:" + cfg.Port
		}
		logger.InitLogger(logger.ParseLevel(cfg.LogLevel))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().String("port", "", "HTTP port (env: IDENTITY_PORT)")
	rootCmd.Flags().String("secret", "", "HS256 signing secret (env: IDENTITY_JWT_SECRET)")
	rootCmd.Flags().String("advertise-url", "", "Base URL registered for discovery (env: IDENTITY_ADVERTISE_URL)")
}

func run(ctx context.Context) error {
	rlog := logger.Default()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := identitymock.NewUserStore()
	if err := users.Seed(); err != nil {
		return err
	}
	svc := identitymock.NewService(users, identitymock.NewTokenManager(cfg.Secret, cfg.TokenTTL))

	registered := make(chan struct{})
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		inst := discovery.Instance{ID: cfg.AdvertiseURL, BaseURL: cfg.AdvertiseURL}
		go func() {
			defer close(registered)
			if err := discovery.NewRedisRegistry(rdb).KeepAlive(ctx, cfg.ServiceName, inst, 30*time.Second); err != nil && !errors.Is(err, context.Canceled) {
				rlog.WithError(err).Error("discovery registration stopped")
			}
		}()
		rlog.Infof("registering %s as %s", cfg.AdvertiseURL, cfg.ServiceName)
	} else {
		close(registered)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           svc.Router(cfg.ValidatePath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		rlog.Infof("identity mock listening on port %s", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serverErrors:
		stop()
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = srv.Shutdown(sctx)
		cancel()
	}
	// the lease is removed before the redis client closes
	<-registered
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Default().WithError(err).Error("identity mock failed")
		os.Exit(1)
	}
}
