package handlers

import (
	"turf-war-system/middleware"
	"turf-war-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTerritoryRoutes(app *fiber.App, territoryService *services.TerritoryService) {
	// 🔓 Public map read model
	app.Get("/territories", territoryService.GetTerritoryMap)
	app.Get("/territories/:id", territoryService.GetTerritoryByID)

	// 🔒 Admin-only seeding surface
	admin := app.Group("/admin", middleware.UserContextMiddleware())
	admin.Post("/territories", territoryService.CreateTerritory)
}
