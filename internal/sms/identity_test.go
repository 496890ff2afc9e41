package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kauri-edtech/smssync/internal/models"
)

func TestNSNVariants(t *testing.T) {
	assert.Equal(t, []string{"0012345", "12345"}, NSNVariants("0012345"))
	assert.Equal(t, []string{"12345", "012345"}, NSNVariants("12345"))
	assert.Equal(t, []string{"0"}, NSNVariants("0"))
}

func TestMatchIdentityNoUser(t *testing.T) {
	store := newFakeStore()
	m, err := MatchIdentity(context.Background(), store, "12345")
	require.NoError(t, err)
	assert.Nil(t, m.User)
	assert.Empty(t, m.Removed)
}

func TestMatchIdentityVariantSpelling(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	id, err := store.CreateUser(ctx, &models.User{Username: "a_s", IDNumber: "012345", Auth: models.AuthAPI})
	require.NoError(t, err)

	m, err := MatchIdentity(ctx, store, "12345")
	require.NoError(t, err)
	require.NotNil(t, m.User)
	assert.Equal(t, id, m.User.ID)
}

func TestMatchIdentityDeletesDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	first, err := store.CreateUser(ctx, &models.User{Username: "a", IDNumber: "12345", Auth: models.AuthAPI})
	require.NoError(t, err)
	second, err := store.CreateUser(ctx, &models.User{Username: "a2", IDNumber: "012345", Auth: models.AuthAPI})
	require.NoError(t, err)

	m, err := MatchIdentity(ctx, store, "12345")
	require.NoError(t, err)
	require.NotNil(t, m.User)
	assert.Equal(t, second, m.User.ID)
	assert.Equal(t, []int64{first}, m.Removed)
	assert.True(t, store.users[first].Deleted)
	assert.False(t, store.users[second].Deleted)
}
