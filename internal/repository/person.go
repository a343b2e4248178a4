package repository

import (
	"context"

	"peopleapi/internal/model"
)

// PersonRepository defines data access for the people collection.
// Persistence only, no business rules. Every method returns
// a *StoreError on failure.
type PersonRepository interface {
	// Create validates and inserts a new person. The store assigns the ID.
	Create(ctx context.Context, p *model.Person) (*model.Person, error)

	// CreateMany inserts all people or none of them when any record is invalid.
	// The returned slice follows the input order.
	CreateMany(ctx context.Context, people []model.Person) ([]model.Person, error)

	// Find returns every person matching the filter.
	// Without SortByName the order is whatever the store returns.
	Find(ctx context.Context, f Filter, opts FindOptions) ([]model.Person, error)

	// FindOne returns the first person matching the filter or ErrNotFound.
	FindOne(ctx context.Context, f Filter) (*model.Person, error)

	// FindByID returns a person by ID. Malformed IDs yield ErrInvalidID.
	FindByID(ctx context.Context, id string) (*model.Person, error)

	// Save writes the full record back under its ID.
	Save(ctx context.Context, p *model.Person) (*model.Person, error)

	// FindOneAndUpdate applies the update to the first match in a single store call
	// and returns the record as it is after the update.
	FindOneAndUpdate(ctx context.Context, f Filter, u Update) (*model.Person, error)

	// FindByIDAndDelete removes a person by ID and returns the removed record.
	FindByIDAndDelete(ctx context.Context, id string) (*model.Person, error)

	// DeleteMany removes every person matching the filter and returns how many were removed.
	DeleteMany(ctx context.Context, f Filter) (int64, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}

// Filter selects people by field equality. Nil fields are not constrained,
// so the zero Filter matches the whole collection. A set field always
// constrains, even to the empty string.
type Filter struct {
	Name *string
	// FavoriteFood matches people whose FavoriteFoods contains the value.
	FavoriteFood *string
}

// ByName matches people whose name equals name.
func ByName(name string) Filter {
	return Filter{Name: &name}
}

// ByFood matches people whose favorite foods contain food.
func ByFood(food string) Filter {
	return Filter{FavoriteFood: &food}
}

// WithFood adds a favorite-food constraint to f.
func (f Filter) WithFood(food string) Filter {
	f.FavoriteFood = &food
	return f
}

// FindOptions narrows a Find call.
type FindOptions struct {
	SortByName bool
	Limit      int
	ExcludeAge bool
}

// Update lists the fields FindOneAndUpdate sets. Nil fields are left untouched.
type Update struct {
	Age *int
}

// IsEmpty reports whether the update would not change anything.
func (u Update) IsEmpty() bool {
	return u.Age == nil
}

// Validate applies the collection schema: name is required.
func Validate(p *model.Person) error {
	if p == nil || p.Name == "" {
		return ErrNameRequired
	}
	return nil
}
