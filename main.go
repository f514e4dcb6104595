package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"coachfit/internal/pkg/cache"
	"coachfit/internal/pkg/database"
	"coachfit/internal/pkg/env"
	"coachfit/internal/pkg/payments"
	"coachfit/internal/pkg/router"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
)

func main() {
	app := NewApplication()

	startResyncer(context.Background())

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	engine := html.New("./views", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())
	app.Static("/", "./public/assets")

	// ROUTER
	router.InstallRouter(app)

	return app
}

// startResyncer runs the periodic subscription reconciliation loop when
// RESYNC_INTERVAL_MINUTES is set to a positive value.
func startResyncer(ctx context.Context) {
	minutes, err := strconv.Atoi(env.GetEnv("RESYNC_INTERVAL_MINUTES", "0"))
	if err != nil || minutes <= 0 {
		return
	}

	svc := payments.NewFromDB(database.GetDB())
	resyncer := payments.NewResyncer(svc.Repo, svc.Sync, time.Duration(minutes)*time.Minute)
	go resyncer.Start(ctx)
}
