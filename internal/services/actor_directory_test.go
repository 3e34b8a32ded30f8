package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
)

type memCache struct {
	data   map[string]string
	getErr error
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.data[key] = value.(string)
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	return c.data[key], nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dest)
}

func (c *memCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = string(raw)
	return nil
}

type countingUserRepo struct {
	fakeUserRepo
	byID int
}

func (r *countingUserRepo) FindByID(ctx context.Context, id uint64) (*entities.User, error) {
	r.byID++
	return r.fakeUserRepo.FindByID(ctx, id)
}

func TestActorDirectory_CachesActor(t *testing.T) {
	db := newMemDB()
	db.addUser(financeHOU, financeDept, "Руководитель", constants.RoleDeptHead)
	repo := &countingUserRepo{fakeUserRepo: fakeUserRepo{db: db}}
	cache := &memCache{data: map[string]string{}}
	d := NewActorDirectory(repo, cache, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		u, err := d.FindActor(context.Background(), financeHOU)
		require.NoError(t, err)
		assert.True(t, u.HasRole(constants.RoleDeptHead))
	}
	assert.Equal(t, 1, repo.byID)

	_, err := d.FindActor(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestActorDirectory_CacheErrorFallsBackToDatabase(t *testing.T) {
	db := newMemDB()
	db.addUser(financeHOU, financeDept, "Руководитель")
	repo := &countingUserRepo{fakeUserRepo: fakeUserRepo{db: db}}
	cache := &memCache{data: map[string]string{}, getErr: errors.New("redis down")}
	d := NewActorDirectory(repo, cache, time.Minute, zap.NewNop())

	_, err := d.FindActor(context.Background(), financeHOU)
	require.NoError(t, err)
	_, err = d.FindActor(context.Background(), financeHOU)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.byID)
}

func TestActorDirectory_ResolveDeduplicatesAndSkipsMissing(t *testing.T) {
	db := newMemDB()
	db.addUser(financeHOU, financeDept, "HOU", constants.RoleDeptHead)
	db.addUser(itHeadID, itDept, "HOU ИТ", constants.RoleDeptHead)
	db.addUser(deputyID, 4, "Зам", constants.RoleDeputyDirector)
	d := NewActorDirectory(&fakeUserRepo{db: db}, nil, time.Minute, zap.NewNop())

	dept := financeDept
	hou := financeHOU
	missing := uint64(404)
	users, err := d.Resolve(context.Background(), []entities.RecipientQuery{
		{Role: constants.RoleDeptHead, DepartmentID: &dept},
		{UserID: &hou},
		{UserID: &missing},
		{Role: constants.RoleDeputyDirector},
		{},
	})
	require.NoError(t, err)

	var ids []uint64
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []uint64{financeHOU, deputyID}, ids)
}
