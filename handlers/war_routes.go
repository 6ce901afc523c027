package handlers

import (
	"turf-war-system/middleware"
	"turf-war-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWarRoutes(app *fiber.App, warService *services.WarService, captureService *services.CaptureService, missionService *services.MissionService, scheduler *services.Scheduler) {
	// 🔓 Public war read models
	app.Get("/wars", warService.GetWars)
	app.Get("/wars/:id", warService.GetWarByID)
	app.Get("/wars/:id/leaderboard", warService.GetWarLeaderboard)
	app.Get("/missions", missionService.GetMissions)

	// 🔐 Authenticated operations
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/territories/:id/wars", warService.HandleDeclareWar)
	secured.Post("/wars/:id/pois/:poi_id/capture", captureService.HandleCaptureAttempt)
	secured.Post("/wars/:id/missions/:code/attempt", missionService.HandleAttemptMission)

	// 🔒 Admin tick entry points — the three passes are callable together or
	// independently, same code paths the background scheduler uses.
	admin := secured.Group("/admin")
	admin.Post("/wars/tick", func(c *fiber.Ctx) error {
		scheduler.Tick()
		return c.JSON(fiber.Map{"message": "tick complete"})
	})
	admin.Post("/wars/promote", func(c *fiber.Ctx) error {
		scheduler.PromoteDueWars()
		return c.JSON(fiber.Map{"message": "promote pass complete"})
	})
	admin.Post("/wars/accrue", func(c *fiber.Ctx) error {
		scheduler.AccrueActiveWars()
		return c.JSON(fiber.Map{"message": "accrue pass complete"})
	})
	admin.Post("/wars/resolve", func(c *fiber.Ctx) error {
		scheduler.ResolveDueWars()
		return c.JSON(fiber.Map{"message": "resolve pass complete"})
	})
}
