package inkwell_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/inkwell"
)

func TestPost_Ownership(t *testing.T) {
	owned := &inkwell.Post{OwnerID: 1}
	assert.True(t, owned.HasOwner())
	assert.True(t, owned.IsOwnedBy(1))
	assert.False(t, owned.IsOwnedBy(2))

	orphan := &inkwell.Post{}
	assert.False(t, orphan.HasOwner())
	assert.False(t, orphan.IsOwnedBy(0), "a post without an owner is owned by nobody")
}

func TestPostFields_Apply(t *testing.T) {
	post := &inkwell.Post{Title: "Old", Content: "old body", Image: "blog/a.png", Slug: "old-12345678", OwnerID: 1}

	inkwell.PostFields{Title: inkwell.StringPtr("New")}.Apply(post)
	assert.Equal(t, "New", post.Title)
	assert.Equal(t, "old body", post.Content)
	assert.Equal(t, "blog/a.png", post.Image)
	assert.Equal(t, "old-12345678", post.Slug)

	inkwell.PostFields{Content: inkwell.StringPtr(""), Image: inkwell.StringPtr("")}.Apply(post)
	assert.Empty(t, post.Content)
	assert.False(t, post.HasImage())
}

func TestPost_Dates(t *testing.T) {
	created := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	post := &inkwell.Post{CreatedAt: created, UpdatedAt: created}

	assert.Equal(t, "Mar 9, 2024", post.CreatedDate())
	assert.False(t, post.HasUpdated())

	post.UpdatedAt = created.Add(time.Hour)
	assert.True(t, post.HasUpdated())

	assert.Empty(t, (&inkwell.Post{}).CreatedDate())
}

func TestPost_SerializeRoundTrip(t *testing.T) {
	post := &inkwell.Post{
		ID:        7,
		Title:     "Hello",
		Content:   "body",
		Slug:      "hello-1b4e28ba",
		OwnerID:   3,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := post.Serialize()
	require.NoError(t, err)

	got, err := inkwell.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, post, got)

	clone := post.Clone()
	clone.Title = "Changed"
	assert.Equal(t, "Hello", post.Title)
}
