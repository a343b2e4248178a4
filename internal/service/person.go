package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"peopleapi/internal/logging"
	"peopleapi/internal/model"
	"peopleapi/internal/repository"
	"peopleapi/internal/storage"
)

// Fixed arguments of the canned operations.
const (
	FoodToAdd       = "hamburger"
	AgeToSet        = 20
	NameToRemove    = "Mary"
	FoodToSearch    = "burrito"
	QueryChainLimit = 2

	exportURLExpiry = 15 * time.Minute
)

var tracer = otel.Tracer("peopleapi/internal/service")

var ErrExportDisabled = errors.New("export storage is not configured")

// ExportResult describes an uploaded snapshot of the people collection.
type ExportResult struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Size  int64  `json:"size"`
	URL   string `json:"url"`
}

// PersonService defines the use cases for the people collection.
// Every failure is logged and returned to the caller unchanged.
type PersonService interface {
	// CreateAndSavePerson stores one person and returns it with its assigned ID.
	CreateAndSavePerson(ctx context.Context, name string, age *int, favoriteFoods []string) (*model.Person, error)

	// CreateManyPeople stores all people, or none when one is invalid.
	CreateManyPeople(ctx context.Context, people []model.Person) ([]model.Person, error)

	// FindPeopleByName returns every person with the given name.
	FindPeopleByName(ctx context.Context, name string) ([]model.Person, error)

	// FindOnePersonByFood returns the first person whose favorite foods contain food.
	FindOnePersonByFood(ctx context.Context, food string) (*model.Person, error)

	// FindPersonByID returns a person by ID.
	FindPersonByID(ctx context.Context, id string) (*model.Person, error)

	// FindEditThenSave loads a person, appends FoodToAdd and saves the full record.
	// Load and save are separate round trips; a concurrent write in between is overwritten.
	FindEditThenSave(ctx context.Context, id string) (*model.Person, error)

	// FindAndUpdate sets AgeToSet on the first person with the given name in one atomic call.
	FindAndUpdate(ctx context.Context, name string) (*model.Person, error)

	// RemoveByID deletes a person and returns the removed record, or nil if there was none.
	RemoveByID(ctx context.Context, id string) (*model.Person, error)

	// RemoveManyPeople deletes everyone named NameToRemove and returns the count.
	RemoveManyPeople(ctx context.Context) (int64, error)

	// QueryChain returns up to QueryChainLimit people who like FoodToSearch,
	// ordered by name, without their age.
	QueryChain(ctx context.Context) ([]model.Person, error)

	// Export uploads a JSON snapshot of the whole collection to object storage.
	Export(ctx context.Context) (*ExportResult, error)
}

// personService is a concrete implementation of PersonService.
type personService struct {
	repo  repository.PersonRepository
	store storage.Storage
	log   *logging.Logger
	now   func() time.Time
}

// NewPersonService constructs a new PersonService. store may be nil, which disables Export.
func NewPersonService(repo repository.PersonRepository, store storage.Storage, log *logging.Logger) PersonService {
	if log == nil {
		log = logging.Nop()
	}
	return &personService{repo: repo, store: store, log: log, now: time.Now}
}

func (s *personService) CreateAndSavePerson(ctx context.Context, name string, age *int, favoriteFoods []string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "create_and_save_person")
	defer span.End()

	p, err := s.repo.Create(ctx, &model.Person{Name: name, Age: age, FavoriteFoods: favoriteFoods})
	if err != nil {
		return nil, s.fail(ctx, "create_and_save_person", err)
	}
	return p, nil
}

func (s *personService) CreateManyPeople(ctx context.Context, people []model.Person) ([]model.Person, error) {
	ctx, span := startSpan(ctx, "create_many_people")
	defer span.End()

	out, err := s.repo.CreateMany(ctx, people)
	if err != nil {
		return nil, s.fail(ctx, "create_many_people", err)
	}
	return out, nil
}

func (s *personService) FindPeopleByName(ctx context.Context, name string) ([]model.Person, error) {
	ctx, span := startSpan(ctx, "find_people_by_name")
	defer span.End()

	out, err := s.repo.Find(ctx, repository.ByName(name), repository.FindOptions{})
	if err != nil {
		return nil, s.fail(ctx, "find_people_by_name", err)
	}
	return out, nil
}

func (s *personService) FindOnePersonByFood(ctx context.Context, food string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "find_one_person_by_food")
	defer span.End()

	p, err := s.repo.FindOne(ctx, repository.ByFood(food))
	if err != nil {
		return nil, s.fail(ctx, "find_one_person_by_food", err)
	}
	return p, nil
}

func (s *personService) FindPersonByID(ctx context.Context, id string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "find_person_by_id")
	defer span.End()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "find_person_by_id", err)
	}
	return p, nil
}

func (s *personService) FindEditThenSave(ctx context.Context, id string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "find_edit_then_save")
	defer span.End()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "find_edit_then_save", err)
	}
	p.FavoriteFoods = append(p.FavoriteFoods, FoodToAdd)

	updated, err := s.repo.Save(ctx, p)
	if err != nil {
		return nil, s.fail(ctx, "find_edit_then_save", err)
	}
	return updated, nil
}

func (s *personService) FindAndUpdate(ctx context.Context, name string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "find_and_update")
	defer span.End()

	age := AgeToSet
	p, err := s.repo.FindOneAndUpdate(ctx, repository.ByName(name), repository.Update{Age: &age})
	if err != nil {
		return nil, s.fail(ctx, "find_and_update", err)
	}
	return p, nil
}

func (s *personService) RemoveByID(ctx context.Context, id string) (*model.Person, error) {
	ctx, span := startSpan(ctx, "remove_by_id")
	defer span.End()

	p, err := s.repo.FindByIDAndDelete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, s.fail(ctx, "remove_by_id", err)
	}
	return p, nil
}

func (s *personService) RemoveManyPeople(ctx context.Context) (int64, error) {
	ctx, span := startSpan(ctx, "remove_many_people")
	defer span.End()

	n, err := s.repo.DeleteMany(ctx, repository.ByName(NameToRemove))
	if err != nil {
		return 0, s.fail(ctx, "remove_many_people", err)
	}
	return n, nil
}

func (s *personService) QueryChain(ctx context.Context) ([]model.Person, error) {
	ctx, span := startSpan(ctx, "query_chain")
	defer span.End()

	out, err := s.repo.Find(ctx, repository.ByFood(FoodToSearch), repository.FindOptions{
		SortByName: true,
		Limit:      QueryChainLimit,
		ExcludeAge: true,
	})
	if err != nil {
		return nil, s.fail(ctx, "query_chain", err)
	}
	return out, nil
}

// Export reads the full collection, uploads it as one JSON document and presigns a download URL.
// The uploaded object is removed again when presigning fails.
func (s *personService) Export(ctx context.Context) (*ExportResult, error) {
	ctx, span := startSpan(ctx, "export")
	defer span.End()

	if s.store == nil {
		return nil, s.fail(ctx, "export", ErrExportDisabled)
	}
	people, err := s.repo.Find(ctx, repository.Filter{}, repository.FindOptions{})
	if err != nil {
		return nil, s.fail(ctx, "export", err)
	}
	body, err := json.Marshal(people)
	if err != nil {
		return nil, s.fail(ctx, "export", fmt.Errorf("encode export: %w", err))
	}

	key := fmt.Sprintf("exports/people-%s-%s.json", s.now().UTC().Format("20060102T150405Z"), uuid.NewString())
	info, err := s.store.Put(ctx, key, bytes.NewReader(body), storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/json",
		Metadata:    map[string]string{"record-count": fmt.Sprint(len(people))},
	})
	if err != nil {
		return nil, s.fail(ctx, "export", fmt.Errorf("upload export: %w", err))
	}

	link, err := s.store.PresignGet(ctx, info.Key, exportURLExpiry)
	if err != nil {
		if delErr := s.store.Delete(ctx, info.Key); delErr != nil {
			return nil, s.fail(ctx, "export", fmt.Errorf("presign export: %v; rollback delete failed: %v", err, delErr))
		}
		return nil, s.fail(ctx, "export", fmt.Errorf("presign export: %w", err))
	}

	s.log.Info("people_exported", map[string]any{"component": "service", "key": info.Key, "count": len(people)})
	return &ExportResult{Key: info.Key, Count: len(people), Size: info.Size, URL: link}, nil
}

func startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "PersonService."+op, trace.WithAttributes(attribute.String("person.op", op)))
}

// fail logs err to the operator stream, marks the active span failed and
// hands err back for the caller to return.
func (s *personService) fail(ctx context.Context, op string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.log.Error("person_operation_failed", err, map[string]any{
		"component": "service",
		"op":        op,
	})
	return err
}
