package bboltstore_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/inkwell"
	"github.com/hypergopher/inkwell/bboltstore"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *bboltstore.BBoltStore {
	t.Helper()

	store := bboltstore.New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.Init(context.Background()))

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func createPost(t *testing.T, store *bboltstore.BBoltStore, title, content string, owner int64, offset time.Duration) *inkwell.Post {
	t.Helper()

	created := baseTime.Add(offset)
	post, err := store.Create(context.Background(), &inkwell.Post{
		Title:     title,
		Content:   content,
		Slug:      inkwell.NewSlug(title),
		OwnerID:   owner,
		CreatedAt: created,
		UpdatedAt: created,
	})
	require.NoError(t, err)
	return post
}

func TestBBoltStore_CreateAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := createPost(t, store, "First", "one", 1, 0)
	second := createPost(t, store, "Second", "two", 1, time.Minute)
	assert.Equal(t, first.ID+1, second.ID)

	got, err := store.GetBySlug(ctx, first.Slug)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "one", got.Content)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	_, err = store.Create(ctx, &inkwell.Post{Title: "dup", Slug: first.Slug})
	assert.ErrorIs(t, err, inkwell.ErrPostExists)

	_, err = store.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, inkwell.ErrPostNotFound)
}

func TestBBoltStore_UpdateAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	post := createPost(t, store, "Original", "content", 1, 0)
	slug := post.Slug

	post.Title = "Renamed"
	post.Slug = "ignored"
	post.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, store.Update(ctx, post))

	got, err := store.GetBySlug(ctx, slug)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, slug, got.Slug)
	assert.True(t, got.HasUpdated())

	require.NoError(t, store.Delete(ctx, post.ID))
	assert.ErrorIs(t, store.Delete(ctx, post.ID), inkwell.ErrPostNotFound)
	assert.ErrorIs(t, store.Update(ctx, post), inkwell.ErrPostNotFound)

	posts, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestBBoltStore_ListAndSearchTitle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	hello := createPost(t, store, "Hello World", "", 1, 0)
	createPost(t, store, "Goodbye", "", 2, time.Minute)
	tour := createPost(t, store, "World Tour", "", 1, 2*time.Minute)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, tour.ID, all[0].ID)
	assert.Equal(t, hello.ID, all[2].ID)

	mine, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	found, err := store.SearchTitle(ctx, "WORLD")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, hello.ID, found[0].ID)
	assert.Equal(t, tour.ID, found[1].ID)
}

func TestBBoltStore_FullTextSearch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	garden := createPost(t, store, "Spring", "planting tomatoes in the garden", 1, 0)
	createPost(t, store, "Kitchen", "baking sourdough bread", 1, time.Minute)

	posts, err := store.FullTextSearch(ctx, "tomatoes", 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, garden.Slug, posts[0].Slug)

	posts, err = store.FullTextSearch(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)

	require.NoError(t, store.Delete(ctx, garden.ID))

	posts, err = store.FullTextSearch(ctx, "tomatoes", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestBBoltStore_Accounts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, &inkwell.Account{Username: "alice", CreatedAt: baseTime})
	require.NoError(t, err)

	_, err = store.CreateAccount(ctx, &inkwell.Account{Username: "bob", CreatedAt: baseTime})
	require.NoError(t, err)

	_, err = store.CreateAccount(ctx, &inkwell.Account{Username: "alice"})
	assert.ErrorIs(t, err, inkwell.ErrAccountExists)

	account.Username = "bob"
	assert.ErrorIs(t, store.UpdateAccount(ctx, account), inkwell.ErrAccountExists)

	account.Username = "alice2"
	require.NoError(t, store.UpdateAccount(ctx, account))

	_, err = store.GetAccountByUsername(ctx, "alice")
	assert.ErrorIs(t, err, inkwell.ErrAccountNotFound)

	got, err := store.GetAccountByUsername(ctx, "alice2")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	profile, err := store.GetOrCreateProfile(ctx, account.ID, "token-1")
	require.NoError(t, err)

	again, err := store.GetOrCreateProfile(ctx, account.ID, "token-2")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)
	assert.Equal(t, "token-1", again.Token)

	again.IsVerified = true
	require.NoError(t, store.UpdateProfile(ctx, again))

	profile, err = store.GetOrCreateProfile(ctx, account.ID, "token-3")
	require.NoError(t, err)
	assert.True(t, profile.IsVerified)

	_, err = store.GetOrCreateProfile(ctx, 999, "token")
	assert.ErrorIs(t, err, inkwell.ErrAccountNotFound)
}

func TestBBoltStore_Clear(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	post := createPost(t, store, "Gone", "soon", 1, 0)
	require.NoError(t, store.Clear())

	_, err := store.GetBySlug(ctx, post.Slug)
	assert.ErrorIs(t, err, inkwell.ErrPostNotFound)

	posts, err := store.FullTextSearch(ctx, "soon", 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
