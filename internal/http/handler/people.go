package handler

import (
	"github.com/gofiber/fiber/v2"

	"peopleapi/internal/model"
	"peopleapi/internal/service"
)

// createPersonRequest is the body of POST /people.
type createPersonRequest struct {
	Name          string   `json:"name"`
	Age           *int     `json:"age"`
	FavoriteFoods []string `json:"favoriteFoods"`
}

// listResponse wraps collections so the top-level JSON value is always an object.
type listResponse struct {
	Items []model.Person `json:"data"`
	Total int            `json:"total"`
}

func newListResponse(items []model.Person) listResponse {
	if items == nil {
		items = []model.Person{}
	}
	return listResponse{Items: items, Total: len(items)}
}

// CreatePerson godoc
// @Summary Create a person
// @Tags people
// @Accept json
// @Produce json
// @Param person body createPersonRequest true "person"
// @Success 201 {object} model.Person
// @Failure 400 {object} errorPayload
// @Router /people [post]
func CreatePerson(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createPersonRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		p, err := svc.CreateAndSavePerson(c.UserContext(), req.Name, req.Age, req.FavoriteFoods)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// CreateManyPeople godoc
// @Summary Create many people at once
// @Tags people
// @Accept json
// @Produce json
// @Param people body []createPersonRequest true "people"
// @Success 201 {object} listResponse
// @Failure 400 {object} errorPayload
// @Router /people/batch [post]
func CreateManyPeople(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req []createPersonRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		people := make([]model.Person, 0, len(req))
		for _, r := range req {
			people = append(people, model.Person{Name: r.Name, Age: r.Age, FavoriteFoods: r.FavoriteFoods})
		}
		out, err := svc.CreateManyPeople(c.UserContext(), people)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(newListResponse(out))
	}
}

// FindPeopleByName godoc
// @Summary List people with a given name
// @Tags people
// @Produce json
// @Param name query string true "exact name"
// @Success 200 {object} listResponse
// @Router /people [get]
func FindPeopleByName(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Query("name")
		if name == "" {
			return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "name query parameter is required")
		}
		out, err := svc.FindPeopleByName(c.UserContext(), name)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(newListResponse(out))
	}
}

// FindOnePersonByFood godoc
// @Summary Find the first person who likes a food
// @Tags people
// @Produce json
// @Param food query string true "favorite food"
// @Success 200 {object} model.Person
// @Failure 404 {object} errorPayload
// @Router /people/search [get]
func FindOnePersonByFood(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		food := c.Query("food")
		if food == "" {
			return writeError(c, fiber.StatusBadRequest, "FOOD_REQUIRED", "food query parameter is required")
		}
		p, err := svc.FindOnePersonByFood(c.UserContext(), food)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(p)
	}
}

// QueryChain godoc
// @Summary First two burrito lovers by name, without age
// @Tags people
// @Produce json
// @Success 200 {object} listResponse
// @Router /people/query-chain [get]
func QueryChain(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.QueryChain(c.UserContext())
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(newListResponse(out))
	}
}

// GetPerson godoc
// @Summary Get a person by id
// @Tags people
// @Produce json
// @Param id path string true "person id"
// @Success 200 {object} model.Person
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /people/{id} [get]
func GetPerson(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.FindPersonByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(p)
	}
}

// AddHamburger godoc
// @Summary Append "hamburger" to a person's favorite foods
// @Tags people
// @Produce json
// @Param id path string true "person id"
// @Success 200 {object} model.Person
// @Failure 404 {object} errorPayload
// @Router /people/{id}/favorite-foods [patch]
func AddHamburger(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.FindEditThenSave(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(p)
	}
}

// SetAgeByName godoc
// @Summary Set age to 20 on the first person with a name
// @Tags people
// @Produce json
// @Param name path string true "exact name"
// @Success 200 {object} model.Person
// @Failure 404 {object} errorPayload
// @Router /people/by-name/{name}/age [patch]
func SetAgeByName(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.FindAndUpdate(c.UserContext(), c.Params("name"))
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(p)
	}
}

// DeletePerson godoc
// @Summary Delete a person by id
// @Tags people
// @Produce json
// @Param id path string true "person id"
// @Success 200 {object} model.Person
// @Success 204 "no person with that id existed"
// @Router /people/{id} [delete]
func DeletePerson(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.RemoveByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeStoreError(c, err)
		}
		if p == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(p)
	}
}

// DeleteMarys godoc
// @Summary Delete everyone named Mary
// @Tags people
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /people/bulk/mary [delete]
func DeleteMarys(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, err := svc.RemoveManyPeople(c.UserContext())
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(fiber.Map{"deletedCount": n})
	}
}

// ExportPeople godoc
// @Summary Export the collection to object storage
// @Tags people
// @Produce json
// @Success 201 {object} service.ExportResult
// @Failure 503 {object} errorPayload
// @Router /people/export [post]
func ExportPeople(svc service.PersonService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.Export(c.UserContext())
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}
