package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fenilmodi00/ipo-tracker/config"
	"github.com/fenilmodi00/ipo-tracker/database"
	"github.com/fenilmodi00/ipo-tracker/handlers"
	"github.com/fenilmodi00/ipo-tracker/jobs"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App holds the wired services shared by every command.
type App struct {
	Config  *config.Config
	Unified *shared.UnifiedConfiguration
	Metrics *shared.ServiceMetrics

	DB     *sqlx.DB
	Stores *store.Stores
	Redis  *redis.Client

	Cache        *services.CacheService
	Identity     *services.IdentityService
	Tokens       *services.TokenIssuer
	Catalog      *services.CatalogService
	Applications *services.ApplicationService
	Dashboard    *services.DashboardService

	Processor  *services.NotificationProcessor
	Dispatcher *services.AsyncDispatcher
	Queue      *services.RedisNotificationQueue

	OpeningAlerts *jobs.OpeningAlertJob
	CacheCleanup  *jobs.CacheCleanupJob

	logCloser io.Closer
}

// newApp loads configuration and wires stores, services and the notification pipeline.
// Nothing is started; serve decides what runs.
func newApp(ctx context.Context) (*App, error) {
	cfg := config.LoadConfig()
	unified := cfg.Unified()

	app := &App{
		Config:  cfg,
		Unified: unified,
		Metrics: shared.NewServiceMetrics("ipo_tracker"),
	}
	app.logCloser = shared.SetupLogging(unified.Logging)

	if err := app.openStores(ctx); err != nil {
		app.Close()
		return nil, err
	}

	utility := services.NewUtilityService()
	app.Cache = services.NewCacheServiceWithConfig(unified.Cache, app.Metrics)
	ipos := services.NewCachedIPOStore(app.Stores.IPOs, app.Cache)

	app.Tokens = services.NewTokenIssuer(cfg.JWTSecret, cfg.GetTokenTTL())
	app.Identity = services.NewIdentityService(
		app.Stores.Users,
		app.Stores.Applications,
		services.NewPasswordHasher(cfg.BcryptCost),
		app.Tokens,
		app.Metrics,
	).WithAdminEmails(cfg.IsAdminEmail)

	app.Catalog = services.NewCatalogService(
		ipos,
		services.NewMarketSimulator(time.Now().UnixNano()),
		utility,
		services.NewAuditLogger("CatalogService"),
	)

	if err := app.buildNotifications(utility); err != nil {
		app.Close()
		return nil, err
	}

	app.Applications = services.NewApplicationService(
		app.Stores.Applications,
		app.Stores.Users,
		ipos,
		app.Dispatcher,
		services.NewAuditLogger("ApplicationService"),
		app.Metrics,
	)
	app.Dashboard = services.NewDashboardService(app.Stores.Users, ipos, app.Stores.Applications, utility)

	app.OpeningAlerts = jobs.NewOpeningAlertJob(app.Catalog, app.Identity, app.Dispatcher)
	app.CacheCleanup = jobs.NewCacheCleanupJob(app.Cache)

	return app, nil
}

func (a *App) openStores(ctx context.Context) error {
	logger := logrus.WithFields(logrus.Fields{
		"component": "Storage",
		"driver":    a.Config.StoreDriver,
	})

	switch a.Config.StoreDriver {
	case config.StoreDriverJSON:
		stores, err := store.NewMemoryStores(a.Config.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open JSON store: %w", err)
		}
		a.Stores = stores
		logger.WithField("data_dir", a.Config.DataDir).Info("Using JSON file store")
		return nil

	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		if err := a.connectDB(); err != nil {
			return err
		}
		if err := database.Migrate(ctx, a.DB); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.Stores = store.NewSQLStores(a.DB)
		logger.Info("Using SQL store")
		return nil

	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", a.Config.StoreDriver)
	}
}

func (a *App) connectDB() error {
	driver, dsn := database.DriverPostgres, a.Config.DatabaseURL
	if a.Config.StoreDriver == config.StoreDriverSQLite {
		driver, dsn = database.DriverSQLite, a.Config.SQLitePath
	}
	if dsn == "" {
		return fmt.Errorf("no database location configured for driver %s", a.Config.StoreDriver)
	}

	db, err := database.ConnectWithConfig(driver, dsn, &a.Unified.Database)
	if err != nil {
		return err
	}
	a.DB = db
	return nil
}

func (a *App) buildNotifications(utility *services.UtilityService) error {
	composer, err := services.NewNotificationComposer(a.Config.PublicBaseURL, utility)
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}

	a.Processor = services.NewNotificationProcessor(composer, a.emailSender(), a.Unified.Notification, a.Metrics)

	var handler services.TaskHandler = a.Processor
	if a.Config.RedisURL != "" {
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)

		hostname, _ := os.Hostname()
		a.Queue = services.NewRedisNotificationQueue(a.Redis, services.RedisQueueConfig{
			Stream:   a.Config.NotifyStream,
			Group:    a.Config.NotifyGroup,
			Consumer: hostname,
		})
		handler = a.Queue
	}

	a.Dispatcher = services.NewAsyncDispatcher(handler, a.Unified.Notification, a.Metrics)
	return nil
}

func (a *App) emailSender() services.EmailSender {
	var senders services.MultiSender
	if a.Config.EmailHost != "" {
		senders = append(senders, services.NewSMTPSender(services.SMTPConfig{
			Host:     a.Config.EmailHost,
			Port:     a.Config.EmailPort,
			Username: a.Config.EmailUser,
			Password: a.Config.EmailPassword,
			From:     a.Config.EmailFrom,
		}))
	}
	if a.Config.WebhookURL != "" {
		senders = append(senders, services.NewWebhookSender(
			a.Config.WebhookURL,
			shared.NewHTTPClientFactory(a.Unified.Notification.SendTimeout),
			a.Unified.Notification.MaxRetryAttempts,
		))
	}

	switch len(senders) {
	case 0:
		logrus.Warn("No email transport configured, notifications will only be logged")
		return services.LogSender{}
	case 1:
		return senders[0]
	default:
		return senders
	}
}

// probes lists the dependencies /health checks.
func (a *App) probes() map[string]handlers.HealthProbe {
	probes := map[string]handlers.HealthProbe{}
	if a.DB != nil {
		probes["database"] = func(ctx context.Context) error {
			return database.HealthCheck(ctx, a.DB)
		}
	}
	if a.Redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return probes
}

// Close releases storage, redis and the log file.
func (a *App) Close() {
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close stores")
		}
	} else if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
