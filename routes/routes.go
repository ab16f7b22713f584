package routes

import (
	controller "outreachd/controllers"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetupRoutes wires the read-only operator status API.
func SetupRoutes(app *fiber.App, db *gorm.DB, logger *logrus.Logger) {
	status := controller.NewStatusController(db, logger)

	api := app.Group("/api")
	api.Get("/workers", status.GetWorkers)
	api.Get("/campaigns", status.GetCampaigns)
	api.Get("/alerts/backlog", status.GetAlertBacklog)
}
