package inkwell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Blog is the post repository. It assigns slugs on creation and performs scoped
// retrieval, mutation and deletion on top of a PostStore.
type Blog struct {
	store   PostStore
	logger  *slog.Logger
	now     func() time.Time
	newSlug func(title string) string
}

// Options is a struct for configuring a new Blog instance.
type Options struct {
	Store   PostStore                 // Store is the datastore holding the posts. Required.
	Logger  *slog.Logger              // Logger is the logger used by Blog. Default is a debug logger to stderr.
	Now     func() time.Time          // Now returns the current time. Default is time.Now in UTC.
	NewSlug func(title string) string // NewSlug builds the slug of a new post. Default is NewSlug.
}

// NewBlog creates a new Blog with the provided options.
func NewBlog(opts Options) (*Blog, error) {
	if opts.Store == nil {
		return nil, errors.New("a post store is required")
	}

	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	if opts.NewSlug == nil {
		opts.NewSlug = NewSlug
	}

	return &Blog{
		store:   opts.Store,
		logger:  opts.Logger,
		now:     opts.Now,
		newSlug: opts.NewSlug,
	}, nil
}

// Store returns the underlying post store.
func (b *Blog) Store() PostStore {
	return b.store
}

// Create stores a new post owned by ownerID (zero for no owner) and returns it with its ID and slug set.
// The title is assumed to be valid.
func (b *Blog) Create(ctx context.Context, title, content string, ownerID int64, image string) (*Post, error) {
	now := b.now()
	post := &Post{
		Title:     title,
		Content:   content,
		Slug:      b.newSlug(title),
		OwnerID:   ownerID,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := b.store.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post %q: %w", post.Slug, err)
	}

	b.logger.Debug("post created", slog.String("slug", created.Slug), slog.Int64("owner", ownerID))
	return created, nil
}

// GetBySlug returns the post with the exact slug, or ErrPostNotFound.
func (b *Blog) GetBySlug(ctx context.Context, slug string) (*Post, error) {
	post, err := b.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListAll returns every post, newest first.
func (b *Blog) ListAll(ctx context.Context) ([]*Post, error) {
	return b.store.List(ctx, 0)
}

// ListByOwner returns the posts of one account, newest first.
func (b *Blog) ListByOwner(ctx context.Context, ownerID int64) ([]*Post, error) {
	if ownerID == 0 {
		return []*Post{}, nil
	}
	return b.store.List(ctx, ownerID)
}

// Update applies the supplied fields to the post and persists it. The slug and owner are never
// changed, even when the title is, so existing links keep working.
func (b *Blog) Update(ctx context.Context, post *Post, fields PostFields) (*Post, error) {
	updated := post.Clone()
	fields.Apply(updated)
	updated.UpdatedAt = b.now()

	if err := b.store.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("error updating post %q: %w", post.Slug, err)
	}

	b.logger.Debug("post updated", slog.String("slug", updated.Slug))
	return updated, nil
}

// Delete removes the post.
func (b *Blog) Delete(ctx context.Context, post *Post) error {
	if err := b.store.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("error deleting post %q: %w", post.Slug, err)
	}

	b.logger.Debug("post deleted", slog.String("slug", post.Slug))
	return nil
}

// Search returns the posts whose title contains query, ignoring case. An empty query matches nothing.
func (b *Blog) Search(ctx context.Context, query string) ([]*Post, error) {
	if query == "" {
		return []*Post{}, nil
	}
	return b.store.SearchTitle(ctx, query)
}

// FullTextSearch searches titles and content when the store keeps a full-text index.
func (b *Blog) FullTextSearch(ctx context.Context, query string, limit int) ([]*Post, error) {
	searcher, ok := b.store.(FullTextSearcher)
	if !ok {
		return nil, ErrSearchUnsupported
	}

	if query == "" {
		return []*Post{}, nil
	}

	if limit < 1 {
		limit = 20
	}

	return searcher.FullTextSearch(ctx, query, limit)
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{
			AddSource: false,
			Level:     slog.LevelDebug,
		}))
}
