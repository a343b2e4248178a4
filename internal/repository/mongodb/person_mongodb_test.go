package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"peopleapi/internal/model"
	"peopleapi/internal/repository"
)

func personDoc(id primitive.ObjectID, name string, age *int, foods ...string) bson.D {
	d := bson.D{{Key: "_id", Value: id}, {Key: "name", Value: name}}
	if age != nil {
		d = append(d, bson.E{Key: "age", Value: int32(*age)})
	}
	if foods == nil {
		foods = []string{}
	}
	return append(d, bson.E{Key: "favoriteFoods", Value: foods})
}

func TestPersonMongo_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("success", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		p, err := repo.Create(ctx, &model.Person{Name: "John Doe", Age: model.IntPtr(30), FavoriteFoods: []string{"Pizza", "Burger"}})

		require.NoError(mt, err)
		assert.Len(mt, p.ID, 24)
		assert.Equal(mt, "John Doe", p.Name)
		assert.Equal(mt, []string{"Pizza", "Burger"}, p.FavoriteFoods)
	})

	mt.Run("missing name", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)

		p, err := repo.Create(ctx, &model.Person{})

		assert.ErrorIs(mt, err, repository.ErrNameRequired)
		assert.Nil(mt, p)
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.Create(ctx, &model.Person{Name: "Dup"})

		var se *repository.StoreError
		require.ErrorAs(mt, err, &se)
		assert.Equal(mt, "create", se.Op)
	})
}

func TestPersonMongo_CreateMany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("success keeps order", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		out, err := repo.CreateMany(ctx, []model.Person{{Name: "A"}, {Name: "B"}})

		require.NoError(mt, err)
		require.Len(mt, out, 2)
		assert.Equal(mt, "A", out[0].Name)
		assert.Equal(mt, "B", out[1].Name)
		assert.NotEqual(mt, out[0].ID, out[1].ID)
	})

	mt.Run("invalid record", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)

		out, err := repo.CreateMany(ctx, []model.Person{{Name: "A"}, {}})

		assert.ErrorIs(mt, err, repository.ErrNameRequired)
		assert.Nil(mt, out)
	})
}

func TestPersonMongo_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("returns documents", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			personDoc(primitive.NewObjectID(), "Ann", model.IntPtr(20), "soup"),
			personDoc(primitive.NewObjectID(), "Ann", nil),
		))

		got, err := repo.Find(ctx, repository.ByName("Ann"), repository.FindOptions{})

		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, 20, *got[0].Age)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, "Ann", cmd.Lookup("filter", "name").StringValue())
		for _, key := range []string{"sort", "limit", "projection"} {
			_, err := cmd.LookupErr(key)
			assert.Error(mt, err, key)
		}
		assert.Nil(mt, got[1].Age)
		assert.Equal(mt, []string{}, got[1].FavoriteFoods)
	})

	mt.Run("empty", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		got, err := repo.Find(ctx, repository.ByName("Nobody"), repository.FindOptions{})

		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})

	mt.Run("exclude age drops the field", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			personDoc(primitive.NewObjectID(), "A", model.IntPtr(9), "burrito"),
		))

		got, err := repo.Find(ctx, repository.ByFood("burrito"), repository.FindOptions{
			SortByName: true,
			Limit:      2,
			ExcludeAge: true,
		})

		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Nil(mt, got[0].Age)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "find", started.CommandName)
		cmd := started.Command
		assert.Equal(mt, "burrito", cmd.Lookup("filter", "favoriteFoods").StringValue())
		assert.Equal(mt, int64(1), cmd.Lookup("sort", "name").AsInt64())
		assert.Equal(mt, int64(2), cmd.Lookup("limit").AsInt64())
		assert.Equal(mt, int64(0), cmd.Lookup("projection", "age").AsInt64())
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad query",
		}))

		_, err := repo.Find(ctx, repository.Filter{}, repository.FindOptions{})

		var se *repository.StoreError
		assert.ErrorAs(mt, err, &se)
	})
}

func TestPersonMongo_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("found", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		id := primitive.NewObjectID()
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			personDoc(id, "Ann", nil, "Pizza"),
		))

		p, err := repo.FindByID(ctx, id.Hex())

		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), p.ID)
		assert.Equal(mt, []string{"Pizza"}, p.FavoriteFoods)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		p, err := repo.FindByID(ctx, primitive.NewObjectID().Hex())

		assert.ErrorIs(mt, err, repository.ErrNotFound)
		assert.Nil(mt, p)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)

		p, err := repo.FindByID(ctx, "not-an-object-id")

		assert.ErrorIs(mt, err, repository.ErrInvalidID)
		assert.Nil(mt, p)
	})
}

func TestPersonMongo_FindOne(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("found", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			personDoc(primitive.NewObjectID(), "Ken", nil, "sushi"),
		))

		p, err := repo.FindOne(ctx, repository.ByFood("sushi"))

		require.NoError(mt, err)
		assert.Equal(mt, "Ken", p.Name)
	})
}

func TestPersonMongo_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	id := primitive.NewObjectID()

	mt.Run("matched", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		p, err := repo.Save(ctx, &model.Person{ID: id.Hex(), Name: "Ann", FavoriteFoods: []string{"Pizza", "hamburger"}})

		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), p.ID)
		assert.Equal(mt, []string{"Pizza", "hamburger"}, p.FavoriteFoods)
	})

	mt.Run("gone", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		_, err := repo.Save(ctx, &model.Person{ID: id.Hex(), Name: "Ann"})

		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestPersonMongo_FindOneAndUpdate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("returns updated document", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: personDoc(primitive.NewObjectID(), "Alice", model.IntPtr(20), "tea")},
		})

		p, err := repo.FindOneAndUpdate(ctx, repository.ByName("Alice"), repository.Update{Age: model.IntPtr(20)})

		require.NoError(mt, err)
		assert.Equal(mt, 20, *p.Age)
		assert.Equal(mt, []string{"tea"}, p.FavoriteFoods)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "findAndModify", started.CommandName)
		cmd := started.Command
		assert.Equal(mt, "Alice", cmd.Lookup("query", "name").StringValue())
		assert.Equal(mt, int64(20), cmd.Lookup("update", "$set", "age").AsInt64())
		assert.True(mt, cmd.Lookup("new").Boolean())
	})

	mt.Run("no match", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: nil},
		})

		_, err := repo.FindOneAndUpdate(ctx, repository.ByName("Nobody"), repository.Update{Age: model.IntPtr(20)})

		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("empty update", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)

		_, err := repo.FindOneAndUpdate(ctx, repository.ByName("Alice"), repository.Update{})

		assert.ErrorIs(mt, err, repository.ErrEmptyUpdate)
	})
}

func TestPersonMongo_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("by id", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: personDoc(id, "Gone", nil)},
		})

		p, err := repo.FindByIDAndDelete(ctx, id.Hex())

		require.NoError(mt, err)
		assert.Equal(mt, "Gone", p.Name)
	})

	mt.Run("many", func(mt *mtest.T) {
		repo := NewPersonMongo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		n, err := repo.DeleteMany(ctx, repository.ByName("Mary"))

		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})
}

func TestToFilter(t *testing.T) {
	assert.Equal(t, bson.D{}, toFilter(repository.Filter{}))
	assert.Equal(t, bson.D{
		{Key: "name", Value: "A"},
		{Key: "favoriteFoods", Value: "burrito"},
	}, toFilter(repository.ByName("A").WithFood("burrito")))
	assert.Equal(t, bson.D{{Key: "name", Value: ""}}, toFilter(repository.ByName("")))
	assert.Equal(t, bson.D{{Key: "favoriteFoods", Value: ""}}, toFilter(repository.ByFood("")))
}
