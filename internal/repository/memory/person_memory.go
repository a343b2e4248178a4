package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"peopleapi/internal/model"
	"peopleapi/internal/repository"
)

// PersonMemory is an in-process implementation of repository.PersonRepository.
// Insertion order is the store-native order. Records are copied on the way in
// and out so callers never alias stored state.
type PersonMemory struct {
	mu    sync.RWMutex
	byID  map[string]model.Person
	order []string
}

// NewPersonMemory creates an empty in-memory person store.
func NewPersonMemory() *PersonMemory {
	return &PersonMemory{byID: make(map[string]model.Person)}
}

var _ repository.PersonRepository = (*PersonMemory)(nil)

func (r *PersonMemory) Create(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("create", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.insertLocked(*p)
	return &out, nil
}

// CreateMany validates every record before storing any of them.
func (r *PersonMemory) CreateMany(ctx context.Context, people []model.Person) ([]model.Person, error) {
	for i := range people {
		if err := repository.Validate(&people[i]); err != nil {
			return nil, repository.Wrap("create_many", err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Person, 0, len(people))
	for _, p := range people {
		out = append(out, r.insertLocked(p))
	}
	return out, nil
}

func (r *PersonMemory) Find(ctx context.Context, f repository.Filter, opts repository.FindOptions) ([]model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.Person, 0)
	for _, id := range r.order {
		p := r.byID[id]
		if matches(p, f) {
			items = append(items, p.Clone())
		}
	}
	if opts.SortByName {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	if opts.ExcludeAge {
		for i := range items {
			items[i].Age = nil
		}
	}
	return items, nil
}

func (r *PersonMemory) FindOne(ctx context.Context, f repository.Filter) (*model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.firstMatchLocked(f)
	if !ok {
		return nil, repository.Wrap("find_one", repository.ErrNotFound)
	}
	out := r.byID[id].Clone()
	return &out, nil
}

func (r *PersonMemory) FindByID(ctx context.Context, id string) (*model.Person, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.Wrap("find_by_id", repository.ErrInvalidID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, repository.Wrap("find_by_id", repository.ErrNotFound)
	}
	out := p.Clone()
	return &out, nil
}

func (r *PersonMemory) Save(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("save", err)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, repository.Wrap("save", repository.ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return nil, repository.Wrap("save", repository.ErrNotFound)
	}
	r.byID[p.ID] = p.Clone()
	out := p.Clone()
	return &out, nil
}

func (r *PersonMemory) FindOneAndUpdate(ctx context.Context, f repository.Filter, u repository.Update) (*model.Person, error) {
	if u.IsEmpty() {
		return nil, repository.Wrap("find_one_and_update", repository.ErrEmptyUpdate)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.firstMatchLocked(f)
	if !ok {
		return nil, repository.Wrap("find_one_and_update", repository.ErrNotFound)
	}
	p := r.byID[id]
	if u.Age != nil {
		age := *u.Age
		p.Age = &age
	}
	r.byID[id] = p
	out := p.Clone()
	return &out, nil
}

func (r *PersonMemory) FindByIDAndDelete(ctx context.Context, id string) (*model.Person, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.Wrap("find_by_id_and_delete", repository.ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, repository.Wrap("find_by_id_and_delete", repository.ErrNotFound)
	}
	r.removeLocked(func(candidate string) bool { return candidate == id })
	return &p, nil
}

func (r *PersonMemory) DeleteMany(ctx context.Context, f repository.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.removeLocked(func(id string) bool { return matches(r.byID[id], f) })
	return n, nil
}

// Ping always succeeds; the store lives in process.
func (r *PersonMemory) Ping(ctx context.Context) error {
	return nil
}

func (r *PersonMemory) insertLocked(p model.Person) model.Person {
	stored := p.Clone()
	stored.ID = uuid.NewString()
	if stored.FavoriteFoods == nil {
		stored.FavoriteFoods = []string{}
	}
	r.byID[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.Clone()
}

func (r *PersonMemory) firstMatchLocked(f repository.Filter) (string, bool) {
	for _, id := range r.order {
		if matches(r.byID[id], f) {
			return id, true
		}
	}
	return "", false
}

func (r *PersonMemory) removeLocked(drop func(id string) bool) int64 {
	var n int64
	kept := r.order[:0]
	for _, id := range r.order {
		if drop(id) {
			delete(r.byID, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return n
}

func matches(p model.Person, f repository.Filter) bool {
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	if f.FavoriteFood != nil && !slices.Contains(p.FavoriteFoods, *f.FavoriteFood) {
		return false
	}
	return true
}
