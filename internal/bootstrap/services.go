package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caregrid/caregrid/config"
	"github.com/caregrid/caregrid/internal/adapters/notify"
	"github.com/caregrid/caregrid/internal/adapters/oidc"
	redisadapter "github.com/caregrid/caregrid/internal/adapters/redis"
	"github.com/caregrid/caregrid/internal/data/platform"
	"github.com/caregrid/caregrid/internal/data/tenantdb"
	"github.com/caregrid/caregrid/internal/ports"
	"github.com/caregrid/caregrid/internal/service"
	"github.com/caregrid/caregrid/internal/token"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Auth       *service.AuthService
	Admission  *service.AdmissionController
	Onboarding *service.OnboardingService
	Issuer     *token.Issuer
	Tenants    ports.TenantStore
	Pools      *tenantdb.Pools
}

// ServiceDependencies groups external resources needed to build services.
type ServiceDependencies struct {
	Config *config.AppConfig
	Pool   *pgxpool.Pool
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// InitServices builds the service graph from configuration and connections.
func InitServices(ctx context.Context, deps ServiceDependencies) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := token.NewCodec(token.CodecOptions{
		Secret: []byte(cfg.Auth.Token.Secret),
		Issuer: cfg.Auth.Token.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	issuer, err := token.NewIssuer(token.IssuerOptions{
		Codec:           codec,
		AccessLifetime:  cfg.Auth.Token.AccessLifetime,
		RefreshLifetime: cfg.Auth.Token.RefreshLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	userRepo := platform.NewUserRepo(deps.Pool)
	tenantRepo := platform.NewTenantRepo(deps.Pool)

	var provider ports.IdentityProvider
	if cfg.Auth.Mode == config.AuthModeOAuth {
		provider, err = oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			RedirectURL:  cfg.Auth.OAuth.RedirectURL,
			Scope:        cfg.Auth.OAuth.Scope,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
	}

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Users:         userRepo,
		Issuer:        issuer,
		Denylist:      redisadapter.NewDenylist(deps.Redis),
		Provider:      provider,
		ResetNotifier: notify.NewLogResetNotifier(logger),
		Logger:        logger,
	})

	admission := service.NewAdmissionController(service.AdmissionOptions{
		Store:   redisadapter.NewAdmissionStore(deps.Redis),
		Enabled: cfg.RateLimit.Enabled,
		Policies: map[service.Operation]ports.AdmissionPolicy{
			service.OpLogin:         bucketPolicy(cfg.RateLimit.Login),
			service.OpOAuthCallback: bucketPolicy(cfg.RateLimit.OAuthCallback),
			service.OpPasswordReset: bucketPolicy(cfg.RateLimit.PasswordReset),
		},
		Logger: logger,
	})

	adminCfg := tenantAdminConfig(cfg.TenantAdmin)
	pools := tenantdb.NewPools(adminCfg, tenantRepo, logger)
	onboarding := service.NewOnboardingService(service.OnboardingOptions{
		Tenants:     tenantRepo,
		Provisioner: tenantdb.NewManager(adminCfg, logger),
		Pools:       pools,
		Logger:      logger,
	})

	return &ServiceContainer{
		Auth:       authSvc,
		Admission:  admission,
		Onboarding: onboarding,
		Issuer:     issuer,
		Tenants:    tenantRepo,
		Pools:      pools,
	}, nil
}

func bucketPolicy(b config.BucketConfig) ports.AdmissionPolicy {
	return ports.AdmissionPolicy{
		Capacity:     b.Capacity,
		RefillTokens: b.RefillTokens,
		RefillPeriod: b.RefillPeriod,
	}
}

func tenantAdminConfig(cfg config.TenantAdminConfig) tenantdb.AdminConfig {
	return tenantdb.AdminConfig{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		SSLMode:       cfg.SSLMode,
		MaintenanceDB: cfg.MaintenanceDB,
	}
}
