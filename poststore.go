package inkwell

import "context"

// PostStore persists posts. Implementations must enforce slug uniqueness and return
// ErrPostExists on a duplicate slug and ErrPostNotFound when a slug or ID is unknown.
type PostStore interface {
	// Init initializes the post store, such as creating the necessary tables or indexes.
	Init(ctx context.Context) error
	// Create stores a new post. The post's Slug must already be set; the store assigns the ID.
	Create(ctx context.Context, post *Post) (*Post, error)
	// Update overwrites the title, content, image and updated timestamp of an existing post.
	Update(ctx context.Context, post *Post) error
	// Delete removes a post.
	Delete(ctx context.Context, id int64) error
	// GetBySlug retrieves a post by its slug.
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	// List returns posts newest first. A zero ownerID lists all posts.
	List(ctx context.Context, ownerID int64) ([]*Post, error)
	// SearchTitle returns posts whose title contains the query, case-insensitively, ordered by ID.
	SearchTitle(ctx context.Context, query string) ([]*Post, error)
	// Close closes the post store.
	Close() error
}

// FullTextSearcher is implemented by stores that maintain a full-text index over posts.
type FullTextSearcher interface {
	FullTextSearch(ctx context.Context, query string, limit int) ([]*Post, error)
}

// AccountStore persists accounts and their profiles.
type AccountStore interface {
	// CreateAccount stores a new account and assigns its ID. Returns ErrAccountExists on a duplicate username.
	CreateAccount(ctx context.Context, account *Account) (*Account, error)
	// UpdateAccount overwrites an existing account.
	UpdateAccount(ctx context.Context, account *Account) error
	// GetAccount retrieves an account by ID.
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// GetAccountByUsername retrieves an account by username.
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	// GetOrCreateProfile returns the profile for the account, creating it with the given token if missing.
	GetOrCreateProfile(ctx context.Context, accountID int64, token string) (*Profile, error)
	// UpdateProfile overwrites an existing profile.
	UpdateProfile(ctx context.Context, profile *Profile) error
}

// Store is a datastore that holds both posts and accounts.
type Store interface {
	PostStore
	AccountStore
}
