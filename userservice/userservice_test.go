package userservice_test

import (
	"context"
	"testing"

	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/internal/testutil"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/schema"
	"github.com/siherrmann/grapher/userservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	ensured map[string]bool
}

func (r *stubRegistry) GetAllSchemas(ctx context.Context, userID string) ([]model.GraphSchema, error) {
	return nil, nil
}
func (r *stubRegistry) StoreSchema(ctx context.Context, userID string, s model.GraphSchema) (model.GraphSchema, error) {
	return s, nil
}
func (r *stubRegistry) EnsureSeedSchemas(ctx context.Context, userID string) error {
	if r.ensured == nil {
		r.ensured = map[string]bool{}
	}
	r.ensured[userID] = true
	return nil
}

func TestCreateUserRejectsInvalidFormat(t *testing.T) {
	store := testutil.NewFakeStore(8)
	svc := userservice.New(store, &stubRegistry{})

	_, err := svc.CreateUser(context.Background(), "has a space")
	require.Error(t, err)
	assert.True(t, helper.Is(err, helper.InvalidUserId))
}

func TestCreateUserEnsuresSeedSchemas(t *testing.T) {
	store := testutil.NewFakeStore(8)
	reg := &stubRegistry{}
	svc := userservice.New(store, reg)

	created, err := svc.CreateUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, reg.ensured["alice"])
}

func TestCreateUserIsIdempotent(t *testing.T) {
	store := testutil.NewFakeStore(8)
	svc := userservice.New(store, &stubRegistry{})
	ctx := context.Background()

	first, err := svc.CreateUser(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := svc.CreateUser(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestDeleteUserRequiresExistingUser(t *testing.T) {
	store := testutil.NewFakeStore(8)
	svc := userservice.New(store, &stubRegistry{})

	err := svc.DeleteUser(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, helper.Is(err, helper.UserAbsent))
}

func TestDeleteUserCascades(t *testing.T) {
	store := testutil.NewFakeStore(8)
	svc := userservice.New(store, &stubRegistry{})
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "carol")
	require.NoError(t, err)

	err = svc.DeleteUser(ctx, "carol")
	require.NoError(t, err)

	exists, err := store.UserExists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, exists)
}
