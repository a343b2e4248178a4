package handler

import (
	"github.com/gofiber/fiber/v2"

	"peopleapi/internal/service"
)

// RegisterRoutes attaches the health and people routes to the provided Fiber app.
// Static people routes are registered before the /:id ones so they are not shadowed.
func RegisterRoutes(app *fiber.App, store Pinger, svc service.PersonService) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	people := app.Group("/people")
	people.Post("", CreatePerson(svc))
	people.Get("", FindPeopleByName(svc))
	people.Post("/batch", CreateManyPeople(svc))
	people.Post("/export", ExportPeople(svc))
	people.Get("/search", FindOnePersonByFood(svc))
	people.Get("/query-chain", QueryChain(svc))
	people.Delete("/bulk/mary", DeleteMarys(svc))
	people.Patch("/by-name/:name/age", SetAgeByName(svc))
	people.Get("/:id", GetPerson(svc))
	people.Patch("/:id/favorite-foods", AddHamburger(svc))
	people.Delete("/:id", DeletePerson(svc))
}
