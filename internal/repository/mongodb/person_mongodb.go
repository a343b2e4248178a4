package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"peopleapi/internal/model"
	"peopleapi/internal/repository"
)

// personDocument is the BSON shape of a person in the people collection.
type personDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Age           *int               `bson:"age,omitempty"`
	FavoriteFoods []string           `bson:"favoriteFoods"`
}

func toDocument(p *model.Person) personDocument {
	foods := p.FavoriteFoods
	if foods == nil {
		foods = []string{}
	}
	return personDocument{Name: p.Name, Age: p.Age, FavoriteFoods: foods}
}

func (d personDocument) toModel() *model.Person {
	foods := d.FavoriteFoods
	if foods == nil {
		foods = []string{}
	}
	return &model.Person{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Age:           d.Age,
		FavoriteFoods: foods,
	}
}

// PersonMongo is a MongoDB implementation of repository.PersonRepository.
type PersonMongo struct {
	coll *mongo.Collection
}

// NewPersonMongo creates a repository over the given collection.
func NewPersonMongo(coll *mongo.Collection) *PersonMongo {
	return &PersonMongo{coll: coll}
}

var _ repository.PersonRepository = (*PersonMongo)(nil)

// Create inserts a new document and returns it with its ObjectID.
func (r *PersonMongo) Create(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("create", err)
	}
	doc := toDocument(p)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, repository.Wrap("create", err)
	}
	return doc.toModel(), nil
}

// CreateMany validates all records and then inserts them with an ordered InsertMany.
func (r *PersonMongo) CreateMany(ctx context.Context, people []model.Person) ([]model.Person, error) {
	docs := make([]interface{}, 0, len(people))
	out := make([]model.Person, 0, len(people))
	for i := range people {
		if err := repository.Validate(&people[i]); err != nil {
			return nil, repository.Wrap("create_many", err)
		}
		doc := toDocument(&people[i])
		doc.ID = primitive.NewObjectID()
		docs = append(docs, doc)
		out = append(out, *doc.toModel())
	}
	if len(docs) == 0 {
		return out, nil
	}
	if _, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return nil, repository.Wrap("create_many", err)
	}
	return out, nil
}

// Find runs a find with optional sort, limit and age projection.
func (r *PersonMongo) Find(ctx context.Context, f repository.Filter, opts repository.FindOptions) ([]model.Person, error) {
	fo := options.Find()
	if opts.SortByName {
		fo.SetSort(bson.D{{Key: "name", Value: 1}})
	}
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	if opts.ExcludeAge {
		fo.SetProjection(bson.D{{Key: "age", Value: 0}})
	}

	cur, err := r.coll.Find(ctx, toFilter(f), fo)
	if err != nil {
		return nil, repository.Wrap("find", err)
	}
	var docs []personDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, repository.Wrap("find", err)
	}

	items := make([]model.Person, 0, len(docs))
	for _, d := range docs {
		p := d.toModel()
		if opts.ExcludeAge {
			p.Age = nil
		}
		items = append(items, *p)
	}
	return items, nil
}

func (r *PersonMongo) FindOne(ctx context.Context, f repository.Filter) (*model.Person, error) {
	return r.findOne(ctx, "find_one", toFilter(f))
}

func (r *PersonMongo) FindByID(ctx context.Context, id string) (*model.Person, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.Wrap("find_by_id", repository.ErrInvalidID)
	}
	return r.findOne(ctx, "find_by_id", bson.D{{Key: "_id", Value: oid}})
}

// Save replaces the whole document stored under p.ID.
func (r *PersonMongo) Save(ctx context.Context, p *model.Person) (*model.Person, error) {
	if err := repository.Validate(p); err != nil {
		return nil, repository.Wrap("save", err)
	}
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, repository.Wrap("save", repository.ErrInvalidID)
	}
	doc := toDocument(p)
	doc.ID = oid

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc)
	if err != nil {
		return nil, repository.Wrap("save", err)
	}
	if res.MatchedCount == 0 {
		return nil, repository.Wrap("save", repository.ErrNotFound)
	}
	return doc.toModel(), nil
}

// FindOneAndUpdate sets the update fields on the first match and returns the new document.
func (r *PersonMongo) FindOneAndUpdate(ctx context.Context, f repository.Filter, u repository.Update) (*model.Person, error) {
	if u.IsEmpty() {
		return nil, repository.Wrap("find_one_and_update", repository.ErrEmptyUpdate)
	}
	set := bson.D{}
	if u.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *u.Age})
	}
	res := r.coll.FindOneAndUpdate(ctx, toFilter(f), bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	return decodeSingle("find_one_and_update", res)
}

func (r *PersonMongo) FindByIDAndDelete(ctx context.Context, id string) (*model.Person, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.Wrap("find_by_id_and_delete", repository.ErrInvalidID)
	}
	res := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}})
	return decodeSingle("find_by_id_and_delete", res)
}

func (r *PersonMongo) DeleteMany(ctx context.Context, f repository.Filter) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, toFilter(f))
	if err != nil {
		return 0, repository.Wrap("delete_many", err)
	}
	return res.DeletedCount, nil
}

// Ping checks the primary is reachable.
func (r *PersonMongo) Ping(ctx context.Context) error {
	return repository.Wrap("ping", r.coll.Database().Client().Ping(ctx, readpref.Primary()))
}

func (r *PersonMongo) findOne(ctx context.Context, op string, filter bson.D) (*model.Person, error) {
	return decodeSingle(op, r.coll.FindOne(ctx, filter))
}

func decodeSingle(op string, res *mongo.SingleResult) (*model.Person, error) {
	var doc personDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.Wrap(op, repository.ErrNotFound)
		}
		return nil, repository.Wrap(op, err)
	}
	return doc.toModel(), nil
}

// toFilter builds the query document. A scalar match on an array field
// matches when the array contains the value.
func toFilter(f repository.Filter) bson.D {
	filter := bson.D{}
	if f.Name != nil {
		filter = append(filter, bson.E{Key: "name", Value: *f.Name})
	}
	if f.FavoriteFood != nil {
		filter = append(filter, bson.E{Key: "favoriteFoods", Value: *f.FavoriteFood})
	}
	return filter
}
