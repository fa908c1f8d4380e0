package inkwell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// MsgPostDeleted is the acknowledgment shown after a successful delete.
const MsgPostDeleted = "Post deleted successfully."

// maxTitleLength is the longest title accepted from a form.
const maxTitleLength = 1000

// Service guards post mutations behind an ownership check and delegates everything else to the Blog.
type Service struct {
	blog   *Blog
	logger *slog.Logger
}

// NewService creates a new Service on top of blog.
func NewService(blog *Blog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Service{blog: blog, logger: logger}
}

// Blog returns the underlying repository.
func (s *Service) Blog() *Blog {
	return s.blog
}

// Validate checks the form the way the create and edit pages do.
func (f PostForm) Validate() error {
	return validateTitle(f.Title)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "this field is required"}
	}
	if len([]rune(title)) > maxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("ensure this value has at most %d characters", maxTitleLength)}
	}
	return nil
}

// SubmitCreate creates a post owned by the actor.
func (s *Service) SubmitCreate(ctx context.Context, actor Actor, form PostForm) (*Post, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAuthenticationRequired
	}

	if err := form.Validate(); err != nil {
		return nil, err
	}

	return s.blog.Create(ctx, form.Title, form.Content, actor.AccountID, form.Image)
}

// Authorize returns the post at slug if the actor owns it. It fails with ErrAuthenticationRequired
// for an anonymous actor, ErrPostNotFound for an unknown slug and ErrForbidden otherwise.
// A post without an owner is forbidden to everyone.
func (s *Service) Authorize(ctx context.Context, actor Actor, slug string) (*Post, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAuthenticationRequired
	}

	post, err := s.blog.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !post.IsOwnedBy(actor.AccountID) {
		s.logger.Warn("forbidden post mutation",
			slog.String("slug", slug),
			slog.Int64("actor", actor.AccountID),
			slog.Int64("owner", post.OwnerID))
		return nil, fmt.Errorf("%w: %s", ErrForbidden, slug)
	}

	return post, nil
}

// SubmitEdit applies fields to the actor's post.
func (s *Service) SubmitEdit(ctx context.Context, actor Actor, slug string, fields PostFields) (*Post, error) {
	post, err := s.Authorize(ctx, actor, slug)
	if err != nil {
		return nil, err
	}

	if fields.Title != nil {
		if err := validateTitle(*fields.Title); err != nil {
			return nil, err
		}
	}

	return s.blog.Update(ctx, post, fields)
}

// SubmitDelete deletes the actor's post and returns the acknowledgment to show the user.
func (s *Service) SubmitDelete(ctx context.Context, actor Actor, slug string) (string, error) {
	post, err := s.Authorize(ctx, actor, slug)
	if err != nil {
		return "", err
	}

	if err := s.blog.Delete(ctx, post); err != nil {
		return "", err
	}

	return MsgPostDeleted, nil
}

// ViewDetail returns the post at slug. No authorization is needed.
func (s *Service) ViewDetail(ctx context.Context, slug string) (*Post, error) {
	return s.blog.GetBySlug(ctx, slug)
}

// Home lists every post, newest first.
func (s *Service) Home(ctx context.Context) ([]*Post, error) {
	return s.blog.ListAll(ctx)
}

// Profile lists the actor's own posts, newest first.
func (s *Service) Profile(ctx context.Context, actor Actor) ([]*Post, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAuthenticationRequired
	}
	return s.blog.ListByOwner(ctx, actor.AccountID)
}

// Search runs the title search, or the full-text search when fullText is set and supported.
// Unsupported full-text search falls back to the title search.
func (s *Service) Search(ctx context.Context, query string, fullText bool) ([]*Post, error) {
	if fullText {
		posts, err := s.blog.FullTextSearch(ctx, query, 0)
		if !errors.Is(err, ErrSearchUnsupported) {
			return posts, err
		}
	}
	return s.blog.Search(ctx, query)
}
