package inkwell_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hypergopher/inkwell"
)

func TestNewPaginator(t *testing.T) {
	posts := make([]*inkwell.Post, 25)
	for i := range posts {
		posts[i] = &inkwell.Post{ID: int64(i + 1)}
	}

	cases := []struct {
		name      string
		posts     []*inkwell.Post
		page      int
		wantPage  int
		wantLen   int
		wantFirst int64
		hasNext   bool
		hasPrev   bool
	}{
		{name: "First page", posts: posts, page: 1, wantPage: 1, wantLen: 10, wantFirst: 1, hasNext: true},
		{name: "Middle page", posts: posts, page: 2, wantPage: 2, wantLen: 10, wantFirst: 11, hasNext: true, hasPrev: true},
		{name: "Last page is short", posts: posts, page: 3, wantPage: 3, wantLen: 5, wantFirst: 21, hasPrev: true},
		{name: "Page past the end is clamped", posts: posts, page: 9, wantPage: 3, wantLen: 5, wantFirst: 21, hasPrev: true},
		{name: "Page zero is clamped", posts: posts, page: 0, wantPage: 1, wantLen: 10, wantFirst: 1, hasNext: true},
		{name: "No posts", posts: nil, page: 1, wantPage: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := inkwell.NewPaginator(tc.posts, tc.page, 10)

			assert.Equal(t, tc.wantPage, p.CurrentPage)
			assert.Len(t, p.Posts, tc.wantLen)
			assert.Equal(t, tc.hasNext, p.HasNext)
			assert.Equal(t, tc.hasPrev, p.HasPrev)
			assert.Equal(t, len(tc.posts), p.TotalPosts)
			assert.Equal(t, tc.wantLen > 0, p.HasPosts)
			if tc.wantLen > 0 {
				assert.Equal(t, tc.wantFirst, p.Posts[0].ID)
			}
		})
	}
}
