package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peopleapi/internal/logging"
	"peopleapi/internal/model"
	"peopleapi/internal/repository"
	repoMocks "peopleapi/internal/repository/mocks"
	"peopleapi/internal/storage"
	storeMocks "peopleapi/internal/storage/mocks"
)

func storeErr(op string, err error) error {
	return &repository.StoreError{Op: op, Err: err}
}

func TestPersonService_CreateAndSavePerson(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(mRepo *repoMocks.MockPersonRepository)
		personName string
		wantErr    error
	}{
		{
			name:       "happy path",
			personName: "John Doe",
			setupMocks: func(mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Create", mock.Anything, &model.Person{Name: "John Doe", Age: model.IntPtr(30), FavoriteFoods: []string{"Pizza"}}).
					Return(&model.Person{ID: "gen-id", Name: "John Doe"}, nil)
			},
		},
		{
			name: "validation error is returned not swallowed",
			setupMocks: func(mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Create", mock.Anything, mock.Anything).
					Return(nil, storeErr("create", repository.ErrNameRequired))
			},
			wantErr: repository.ErrNameRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPersonRepository)
			svc := NewPersonService(mRepo, nil, logging.Nop())

			tt.setupMocks(mRepo)

			p, err := svc.CreateAndSavePerson(ctx, tt.personName, model.IntPtr(30), []string{"Pizza"})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "gen-id", p.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPersonService_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("find by name", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("Find", mock.Anything, repository.ByName("Ann"), repository.FindOptions{}).
			Return([]model.Person{{ID: "1", Name: "Ann"}}, nil)

		out, err := NewPersonService(mRepo, nil, nil).FindPeopleByName(ctx, "Ann")

		assert.NoError(t, err)
		assert.Len(t, out, 1)
		mRepo.AssertExpectations(t)
	})

	t.Run("find one by food", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("FindOne", mock.Anything, repository.ByFood("sushi")).
			Return(nil, storeErr("find_one", repository.ErrNotFound))

		p, err := NewPersonService(mRepo, nil, nil).FindOnePersonByFood(ctx, "sushi")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, p)
	})

	t.Run("find by id", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("FindByID", mock.Anything, "bad").
			Return(nil, storeErr("find_by_id", repository.ErrInvalidID))

		_, err := NewPersonService(mRepo, nil, nil).FindPersonByID(ctx, "bad")

		assert.ErrorIs(t, err, repository.ErrInvalidID)
	})

	t.Run("query chain uses fixed food sort limit and projection", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("Find", mock.Anything, repository.ByFood("burrito"), repository.FindOptions{
			SortByName: true,
			Limit:      2,
			ExcludeAge: true,
		}).Return([]model.Person{{Name: "A"}, {Name: "B"}}, nil)

		out, err := NewPersonService(mRepo, nil, nil).QueryChain(ctx)

		assert.NoError(t, err)
		assert.Len(t, out, 2)
		mRepo.AssertExpectations(t)
	})
}

func TestPersonService_FindEditThenSave(t *testing.T) {
	ctx := context.Background()

	t.Run("appends hamburger and saves", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("FindByID", mock.Anything, "id-1").
			Return(&model.Person{ID: "id-1", Name: "Ann", FavoriteFoods: []string{"Pizza"}}, nil)
		mRepo.On("Save", mock.Anything, mock.MatchedBy(func(p *model.Person) bool {
			return p.ID == "id-1" && len(p.FavoriteFoods) == 2 && p.FavoriteFoods[1] == "hamburger"
		})).Return(&model.Person{ID: "id-1", Name: "Ann", FavoriteFoods: []string{"Pizza", "hamburger"}}, nil)

		p, err := NewPersonService(mRepo, nil, nil).FindEditThenSave(ctx, "id-1")

		require.NoError(t, err)
		assert.Equal(t, []string{"Pizza", "hamburger"}, p.FavoriteFoods)
		mRepo.AssertExpectations(t)
	})

	t.Run("load error stops before save", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("FindByID", mock.Anything, "id-1").Return(nil, storeErr("find_by_id", repository.ErrNotFound))

		_, err := NewPersonService(mRepo, nil, nil).FindEditThenSave(ctx, "id-1")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		mRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("save error", func(t *testing.T) {
		mRepo := new(repoMocks.MockPersonRepository)
		mRepo.On("FindByID", mock.Anything, "id-1").Return(&model.Person{ID: "id-1", Name: "Ann"}, nil)
		mRepo.On("Save", mock.Anything, mock.Anything).Return(nil, storeErr("save", errors.New("db fail")))

		_, err := NewPersonService(mRepo, nil, nil).FindEditThenSave(ctx, "id-1")

		assert.EqualError(t, err, "person store: save: db fail")
	})
}

func TestPersonService_FindAndUpdate(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockPersonRepository)
	mRepo.On("FindOneAndUpdate", mock.Anything, repository.ByName("Alice"), repository.Update{Age: model.IntPtr(20)}).
		Return(&model.Person{Name: "Alice", Age: model.IntPtr(20)}, nil)

	p, err := NewPersonService(mRepo, nil, nil).FindAndUpdate(ctx, "Alice")

	require.NoError(t, err)
	assert.Equal(t, 20, *p.Age)
	mRepo.AssertExpectations(t)
}

func TestPersonService_RemoveByID(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(mRepo *repoMocks.MockPersonRepository)
		wantPerson bool
		wantErr    bool
	}{
		{
			name: "removed",
			setupMocks: func(mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("FindByIDAndDelete", mock.Anything, "id-1").Return(&model.Person{ID: "id-1"}, nil)
			},
			wantPerson: true,
		},
		{
			name: "missing yields nil without error",
			setupMocks: func(mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("FindByIDAndDelete", mock.Anything, "id-1").
					Return(nil, storeErr("find_by_id_and_delete", repository.ErrNotFound))
			},
		},
		{
			name: "store error",
			setupMocks: func(mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("FindByIDAndDelete", mock.Anything, "id-1").
					Return(nil, storeErr("find_by_id_and_delete", errors.New("db fail")))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPersonRepository)
			tt.setupMocks(mRepo)

			p, err := NewPersonService(mRepo, nil, nil).RemoveByID(ctx, "id-1")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantPerson, p != nil)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPersonService_RemoveManyPeople(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockPersonRepository)
	mRepo.On("DeleteMany", mock.Anything, repository.ByName("Mary")).Return(int64(2), nil)

	n, err := NewPersonService(mRepo, nil, nil).RemoveManyPeople(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPersonService_ErrorsAreLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	mRepo := new(repoMocks.MockPersonRepository)
	mRepo.On("DeleteMany", mock.Anything, mock.Anything).Return(int64(0), storeErr("delete_many", errors.New("connection refused")))

	_, err := NewPersonService(mRepo, nil, logging.New(&buf, time.UTC)).RemoveManyPeople(ctx)

	require.Error(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "remove_many_people", entry["op"])
	assert.Equal(t, "person store: delete_many: connection refused", entry["error"])
}

func TestPersonService_Export(t *testing.T) {
	ctx := context.Background()
	people := []model.Person{{ID: "1", Name: "Ann", FavoriteFoods: []string{}}}

	tests := []struct {
		name       string
		noStore    bool
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:    "disabled without storage",
			noStore: true,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository) {
			},
			wantErr: ErrExportDisabled,
		},
		{
			name: "happy path",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Find", mock.Anything, repository.Filter{}, repository.FindOptions{}).Return(people, nil)
				mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "exports/people-") && strings.HasSuffix(key, ".json")
				}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
					return opt.ContentType == "application/json" && opt.Metadata["record-count"] == "1"
				})).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
					return storage.ObjectInfo{Key: key, Size: opt.Size}
				}, nil)
				mStore.On("PresignGet", mock.Anything, mock.Anything, 15*time.Minute).Return("https://minio/exports/x", nil)
			},
		},
		{
			name: "upload error",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(people, nil)
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErrMsg: "upload export: storage fail",
		},
		{
			name: "presign error rolls back upload",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(people, nil)
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Key: "exports/k.json"}, nil)
				mStore.On("PresignGet", mock.Anything, "exports/k.json", mock.Anything).Return("", errors.New("sign fail"))
				mStore.On("Delete", mock.Anything, "exports/k.json").Return(nil)
			},
			wantErrMsg: "presign export: sign fail",
		},
		{
			name: "presign error with failed rollback",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockPersonRepository) {
				mRepo.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(people, nil)
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{Key: "exports/k.json"}, nil)
				mStore.On("PresignGet", mock.Anything, "exports/k.json", mock.Anything).Return("", errors.New("sign fail"))
				mStore.On("Delete", mock.Anything, "exports/k.json").Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockPersonRepository)
			var svc PersonService
			if tt.noStore {
				svc = NewPersonService(mRepo, nil, nil)
			} else {
				svc = NewPersonService(mRepo, mStore, nil)
			}

			tt.setupMocks(mStore, mRepo)

			res, err := svc.Export(ctx)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, res.Count)
				assert.Equal(t, "https://minio/exports/x", res.URL)
				assert.Positive(t, res.Size)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPersonService_ExportDisabledIsLogged(t *testing.T) {
	var buf bytes.Buffer
	svc := NewPersonService(new(repoMocks.MockPersonRepository), nil, logging.New(&buf, time.UTC))

	res, err := svc.Export(context.Background())

	assert.ErrorIs(t, err, ErrExportDisabled)
	assert.Nil(t, res)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "export", entry["op"])
	assert.Equal(t, ErrExportDisabled.Error(), entry["error"])
}
