package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"turf-war-system/handlers"
	"turf-war-system/middleware"
	"turf-war-system/models"
	"turf-war-system/services"
	"turf-war-system/utils"
	"turf-war-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not initialized, war archiving disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Territory{},
		&models.TerritoryLink{},
		&models.POI{},
		&models.PeaceTreaty{},
		&models.Crew{},
		&models.CrewMember{},
		&models.Player{},
		&models.War{},
		&models.WarScoreEntry{},
		&models.POIControl{},
		&models.PlayerWarParticipation{},
		&models.RevengeBonus{},
		&models.WarEvent{},
		&models.Mission{},
		&models.MissionAttempt{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	territoryService := services.NewTerritoryService(db)
	warService := services.NewWarService(db, territoryService)
	captureService := services.NewCaptureService(db)
	missionService := services.NewMissionService(db)
	settlementService := services.NewSettlementService(db, services.NewWarArchiver())
	scheduler := services.NewScheduler(db, captureService, settlementService)

	if err := missionService.SeedMissionCatalog(); err != nil {
		log.Fatal("failed to seed mission catalog:", err)
	}

	// Crew/player mirror polling from the external crew service
	crewSyncClient := workers.NewCrewSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollCrews(ctx, crewSyncClient, 30*time.Second)

	scheduler.Start()

	handlers.SetupTerritoryRoutes(app, territoryService)
	handlers.SetupWarRoutes(app, warService, captureService, missionService, scheduler)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Crew mirror polling running (every 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
