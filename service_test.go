package inkwell_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/inkwell"
)

var (
	alice = inkwell.Actor{AccountID: 1, Username: "alice"}
	bob   = inkwell.Actor{AccountID: 2, Username: "bob"}
)

func createService(t *testing.T) *inkwell.Service {
	t.Helper()
	blog, _ := createBlog(t)
	return inkwell.NewService(blog, discardLogger())
}

func TestService_SubmitCreate(t *testing.T) {
	svc := createService(t)
	ctx := context.Background()

	cases := []struct {
		name        string
		actor       inkwell.Actor
		form        inkwell.PostForm
		expectErr   error
		expectValid bool
	}{
		{
			name:  "Authenticated actor creates a post",
			actor: alice,
			form:  inkwell.PostForm{Title: "Hello World", Content: "body"},
		},
		{
			name:      "Anonymous actor is rejected",
			actor:     inkwell.Anonymous,
			form:      inkwell.PostForm{Title: "Hello World"},
			expectErr: inkwell.ErrAuthenticationRequired,
		},
		{
			name:        "Blank title is a validation error",
			actor:       alice,
			form:        inkwell.PostForm{Title: "   ", Content: "body"},
			expectValid: true,
		},
		{
			name:        "Overlong title is a validation error",
			actor:       alice,
			form:        inkwell.PostForm{Title: strings.Repeat("x", 1001)},
			expectValid: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			post, err := svc.SubmitCreate(ctx, tc.actor, tc.form)
			switch {
			case tc.expectErr != nil:
				assert.ErrorIs(t, err, tc.expectErr)
			case tc.expectValid:
				var ve *inkwell.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "title", ve.Field)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.actor.AccountID, post.OwnerID)
				assert.Equal(t, tc.form.Title, post.Title)
			}
		})
	}
}

func TestService_SubmitEdit(t *testing.T) {
	svc := createService(t)
	ctx := context.Background()

	post, err := svc.SubmitCreate(ctx, alice, inkwell.PostForm{Title: "Original", Content: "original"})
	require.NoError(t, err)

	t.Run("Non-owner is forbidden and the post is unchanged", func(t *testing.T) {
		_, err := svc.SubmitEdit(ctx, bob, post.Slug, inkwell.PostFields{Title: inkwell.StringPtr("Hijacked")})
		assert.ErrorIs(t, err, inkwell.ErrForbidden)

		got, err := svc.ViewDetail(ctx, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, "Original", got.Title)
	})

	t.Run("Anonymous actor must authenticate", func(t *testing.T) {
		_, err := svc.SubmitEdit(ctx, inkwell.Anonymous, post.Slug, inkwell.PostFields{})
		assert.ErrorIs(t, err, inkwell.ErrAuthenticationRequired)
	})

	t.Run("Unknown slug is not found", func(t *testing.T) {
		_, err := svc.SubmitEdit(ctx, alice, "missing-12345678", inkwell.PostFields{})
		assert.ErrorIs(t, err, inkwell.ErrPostNotFound)
	})

	t.Run("Blank title is rejected", func(t *testing.T) {
		_, err := svc.SubmitEdit(ctx, alice, post.Slug, inkwell.PostFields{Title: inkwell.StringPtr("")})
		assert.True(t, inkwell.IsValidationError(err))
	})

	t.Run("Owner edits and the slug is kept", func(t *testing.T) {
		updated, err := svc.SubmitEdit(ctx, alice, post.Slug, inkwell.PostFields{
			Title:   inkwell.StringPtr("Renamed"),
			Content: inkwell.StringPtr("new content"),
		})
		require.NoError(t, err)
		assert.Equal(t, post.Slug, updated.Slug)

		got, err := svc.ViewDetail(ctx, post.Slug)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, "new content", got.Content)
	})
}

func TestService_OwnerlessPostIsImmutable(t *testing.T) {
	blog, _ := createBlog(t)
	svc := inkwell.NewService(blog, discardLogger())
	ctx := context.Background()

	post, err := blog.Create(ctx, "System Post", "", 0, "")
	require.NoError(t, err)

	for _, actor := range []inkwell.Actor{alice, bob} {
		_, err := svc.SubmitEdit(ctx, actor, post.Slug, inkwell.PostFields{Title: inkwell.StringPtr("x")})
		assert.ErrorIs(t, err, inkwell.ErrForbidden)

		_, err = svc.SubmitDelete(ctx, actor, post.Slug)
		assert.ErrorIs(t, err, inkwell.ErrForbidden)
	}

	_, err = svc.ViewDetail(ctx, post.Slug)
	assert.NoError(t, err)
}

func TestService_SubmitDelete(t *testing.T) {
	svc := createService(t)
	ctx := context.Background()

	post, err := svc.SubmitCreate(ctx, alice, inkwell.PostForm{Title: "To Delete"})
	require.NoError(t, err)

	_, err = svc.SubmitDelete(ctx, bob, post.Slug)
	assert.ErrorIs(t, err, inkwell.ErrForbidden)

	_, err = svc.ViewDetail(ctx, post.Slug)
	require.NoError(t, err, "a forbidden delete leaves the post in place")

	msg, err := svc.SubmitDelete(ctx, alice, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, inkwell.MsgPostDeleted, msg)

	_, err = svc.ViewDetail(ctx, post.Slug)
	assert.ErrorIs(t, err, inkwell.ErrPostNotFound)

	_, err = svc.SubmitDelete(ctx, alice, post.Slug)
	assert.ErrorIs(t, err, inkwell.ErrPostNotFound)
}

func TestService_Profile(t *testing.T) {
	svc := createService(t)
	ctx := context.Background()

	_, err := svc.SubmitCreate(ctx, alice, inkwell.PostForm{Title: "alice post"})
	require.NoError(t, err)
	_, err = svc.SubmitCreate(ctx, bob, inkwell.PostForm{Title: "bob post"})
	require.NoError(t, err)

	posts, err := svc.Profile(ctx, alice)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "alice post", posts[0].Title)

	_, err = svc.Profile(ctx, inkwell.Anonymous)
	assert.ErrorIs(t, err, inkwell.ErrAuthenticationRequired)

	all, err := svc.Home(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_SearchFallsBackToTitleSearch(t *testing.T) {
	svc := createService(t)
	ctx := context.Background()

	_, err := svc.SubmitCreate(ctx, alice, inkwell.PostForm{Title: "Hello World"})
	require.NoError(t, err)

	posts, err := svc.Search(ctx, "world", true)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}
