package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-tracker/handlers"
	"github.com/fenilmodi00/ipo-tracker/jobs"
	"github.com/fenilmodi00/ipo-tracker/middleware"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the notification workers and the scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			return runServe(port)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides SERVER_PORT)")
	return cmd
}

func runServe(port string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if port == "" {
		port = app.Config.ServerPort
	}

	app.Dispatcher.Start()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})
	if app.Queue != nil {
		go func() {
			defer close(consumerDone)
			if err := app.Queue.Consume(consumerCtx, app.Processor); err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).Error("Notification consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	scheduler := jobs.NewScheduler()
	if err := scheduler.Schedule(app.Config.OpeningAlertSchedule, app.OpeningAlerts); err != nil {
		return err
	}
	if err := scheduler.Schedule(app.Config.CacheCleanupSchedule, app.CacheCleanup); err != nil {
		return err
	}
	limiter := shared.NewKeyedRateLimiter(app.Unified.RateLimit)
	if err := scheduler.Schedule("@every 5m", jobs.FuncJob{JobName: "rate-limiter-cleanup", Fn: func() { limiter.Cleanup() }}); err != nil {
		return err
	}
	scheduler.Start()

	server := newServer(app, limiter)

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":         port,
			"store_driver": app.Config.StoreDriver,
		}).Info("Server starting")
		serverErr <- server.Listen(":" + port)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logrus.WithError(err).Error("Server failed")
		}
	case <-ctx.Done():
		logrus.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Scheduled jobs still running at shutdown")
	}
	if err := app.Dispatcher.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Notification queue not fully drained")
	}
	stopConsumer()
	<-consumerDone

	logrus.Info("Server stopped")
	return nil
}

func newServer(app *App, limiter *shared.KeyedRateLimiter) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:      "IPO Tracker API " + Version,
		BodyLimit:    1 << 20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	server.Use(recover.New())
	server.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	server.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	server.Use(cors.New())
	if app.Config.MetricsEnabled {
		server.Use(middleware.Metrics(app.Metrics))
	}

	router := &handlers.Router{
		Auth:         handlers.NewAuthHandler(app.Identity),
		IPOs:         handlers.NewIPOHandler(app.Catalog),
		Applications: handlers.NewApplicationHandler(app.Applications),
		Users:        handlers.NewUserHandler(app.Dashboard, app.Identity),
		Admin:        handlers.NewAdminHandler(app.Applications, app.Cache, app.OpeningAlerts),
		System:       handlers.NewSystemHandler(app.probes()),
		Verifier:     app.Tokens,
		AdminToken:   app.Config.AdminToken,
		Limiter:      limiter,
	}
	if app.Config.MetricsEnabled {
		router.Metrics = app.Metrics
	}
	handlers.RegisterRoutes(server, router)

	return server
}
