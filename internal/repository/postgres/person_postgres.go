package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"peopleapi/internal/model"
	"peopleapi/internal/repository"
)

// PersonPostgres is a PostgreSQL implementation of repository.PersonRepository.
// Favorite foods live in a JSONB array so the table keeps the document shape.
type PersonPostgres struct {
	db *sql.DB
}

// NewPersonPostgres creates a new PersonPostgres repository.
func NewPersonPostgres(db *sql.DB) *PersonPostgres {
	return &PersonPostgres{db: db}
}

var _ repository.PersonRepository = (*PersonPostgres)(nil)

const returningCols = `id, name, age, favorite_foods`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new person row and returns the stored record with its generated ID.
func (r *PersonPostgres) Create(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("create", err)
	}
	foods, err := encodeFoods(p.FavoriteFoods)
	if err != nil {
		return nil, repository.Wrap("create", err)
	}
	const q = `
		INSERT INTO people (name, age, favorite_foods)
		VALUES ($1, $2, $3)
		RETURNING ` + returningCols
	out, err := scanPerson(r.db.QueryRowContext(ctx, q, p.Name, p.Age, foods))
	if err != nil {
		return nil, repository.Wrap("create", err)
	}
	return out, nil
}

// CreateMany inserts all rows in one transaction.
func (r *PersonPostgres) CreateMany(ctx context.Context, people []model.Person) ([]model.Person, error) {
	for i := range people {
		if err := repository.Validate(&people[i]); err != nil {
			return nil, repository.Wrap("create_many", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, repository.Wrap("create_many", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO people (name, age, favorite_foods)
		VALUES ($1, $2, $3)
		RETURNING ` + returningCols
	out := make([]model.Person, 0, len(people))
	for _, p := range people {
		foods, err := encodeFoods(p.FavoriteFoods)
		if err != nil {
			return nil, repository.Wrap("create_many", err)
		}
		stored, err := scanPerson(tx.QueryRowContext(ctx, q, p.Name, p.Age, foods))
		if err != nil {
			return nil, repository.Wrap("create_many", err)
		}
		out = append(out, *stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, repository.Wrap("create_many", err)
	}
	return out, nil
}

// Find returns matching rows. Without SortByName no ORDER BY is issued.
func (r *PersonPostgres) Find(ctx context.Context, f repository.Filter, opts repository.FindOptions) ([]model.Person, error) {
	cols := returningCols
	if opts.ExcludeAge {
		cols = `id, name, NULL::integer AS age, favorite_foods`
	}
	where, args := buildWhere(f, nil)

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM people")
	sb.WriteString(where)
	if opts.SortByName {
		sb.WriteString(" ORDER BY name ASC")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, repository.Wrap("find", err)
	}
	defer rows.Close()

	items := make([]model.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, repository.Wrap("find", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.Wrap("find", err)
	}
	return items, nil
}

// FindOne returns the first matching row.
func (r *PersonPostgres) FindOne(ctx context.Context, f repository.Filter) (*model.Person, error) {
	where, args := buildWhere(f, nil)
	q := "SELECT " + returningCols + " FROM people" + where + " LIMIT 1"
	p, err := scanPerson(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, repository.Wrap("find_one", noRows(err))
	}
	return p, nil
}

// FindByID fetches a single person by its ID.
func (r *PersonPostgres) FindByID(ctx context.Context, id string) (*model.Person, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.Wrap("find_by_id", repository.ErrInvalidID)
	}
	const q = `
		SELECT ` + returningCols + `
		FROM people
		WHERE id = $1
	`
	p, err := scanPerson(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, repository.Wrap("find_by_id", noRows(err))
	}
	return p, nil
}

// Save overwrites every column of an existing row.
func (r *PersonPostgres) Save(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("save", err)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, repository.Wrap("save", repository.ErrInvalidID)
	}
	foods, err := encodeFoods(p.FavoriteFoods)
	if err != nil {
		return nil, repository.Wrap("save", err)
	}
	const q = `
		UPDATE people
		SET name = $2, age = $3, favorite_foods = $4
		WHERE id = $1
		RETURNING ` + returningCols
	out, err := scanPerson(r.db.QueryRowContext(ctx, q, p.ID, p.Name, p.Age, foods))
	if err != nil {
		return nil, repository.Wrap("save", noRows(err))
	}
	return out, nil
}

// FindOneAndUpdate locks the first match and updates it in a single statement.
func (r *PersonPostgres) FindOneAndUpdate(ctx context.Context, f repository.Filter, u repository.Update) (*model.Person, error) {
	if u.IsEmpty() {
		return nil, repository.Wrap("find_one_and_update", repository.ErrEmptyUpdate)
	}
	args := []any{*u.Age}
	where, args := buildWhere(f, args)
	q := `UPDATE people SET age = $1 WHERE id = (SELECT id FROM people` + where +
		` LIMIT 1 FOR UPDATE) RETURNING ` + returningCols
	p, err := scanPerson(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, repository.Wrap("find_one_and_update", noRows(err))
	}
	return p, nil
}

// FindByIDAndDelete removes a person by ID and returns the removed row.
func (r *PersonPostgres) FindByIDAndDelete(ctx context.Context, id string) (*model.Person, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.Wrap("find_by_id_and_delete", repository.ErrInvalidID)
	}
	const q = `DELETE FROM people WHERE id = $1 RETURNING ` + returningCols
	p, err := scanPerson(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, repository.Wrap("find_by_id_and_delete", noRows(err))
	}
	return p, nil
}

// DeleteMany removes every matching row and reports the affected count.
func (r *PersonPostgres) DeleteMany(ctx context.Context, f repository.Filter) (int64, error) {
	where, args := buildWhere(f, nil)
	res, err := r.db.ExecContext(ctx, "DELETE FROM people"+where, args...)
	if err != nil {
		return 0, repository.Wrap("delete_many", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, repository.Wrap("delete_many", err)
	}
	return n, nil
}

// Ping verifies database connectivity.
func (r *PersonPostgres) Ping(ctx context.Context) error {
	return repository.Wrap("ping", r.db.PingContext(ctx))
}

// buildWhere appends filter arguments after args and returns the WHERE clause
// (with a leading space) or an empty string for the zero filter.
func buildWhere(f repository.Filter, args []any) (string, []any) {
	var conds []string
	if f.Name != nil {
		args = append(args, *f.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if f.FavoriteFood != nil {
		args = append(args, *f.FavoriteFood)
		conds = append(conds, fmt.Sprintf("favorite_foods @> jsonb_build_array($%d::text)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPerson(row rowScanner) (*model.Person, error) {
	var (
		p     model.Person
		age   sql.NullInt64
		foods []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &age, &foods); err != nil {
		return nil, err
	}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	p.FavoriteFoods = []string{}
	if len(foods) > 0 {
		if err := json.Unmarshal(foods, &p.FavoriteFoods); err != nil {
			return nil, fmt.Errorf("decode favorite_foods: %w", err)
		}
	}
	return &p, nil
}

func encodeFoods(foods []string) (string, error) {
	if foods == nil {
		foods = []string{}
	}
	b, err := json.Marshal(foods)
	if err != nil {
		return "", fmt.Errorf("encode favorite_foods: %w", err)
	}
	return string(b), nil
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
