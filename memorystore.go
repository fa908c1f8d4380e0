package inkwell

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store using in-memory maps
type MemoryStore struct {
	mu            sync.RWMutex
	posts         map[int64]*Post
	slugs         map[string]int64
	accounts      map[int64]*Account
	usernames     map[string]int64
	profiles      map[int64]*Profile
	nextPostID    int64
	nextAccountID int64
	nextProfileID int64
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	m.reset()
	return m
}

func (m *MemoryStore) reset() {
	m.posts = make(map[int64]*Post)
	m.slugs = make(map[string]int64)
	m.accounts = make(map[int64]*Account)
	m.usernames = make(map[string]int64)
	m.profiles = make(map[int64]*Profile)
	m.nextPostID = 0
	m.nextAccountID = 0
	m.nextProfileID = 0
}

// Init initializes the store
func (m *MemoryStore) Init(_ context.Context) error {
	return nil
}

// Clear removes all data from the store
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// Close closes the store
func (m *MemoryStore) Close() error {
	return nil
}

// Create adds a new post to the store
func (m *MemoryStore) Create(_ context.Context, post *Post) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[post.Slug]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPostExists, post.Slug)
	}

	m.nextPostID++
	stored := post.Clone()
	stored.ID = m.nextPostID
	m.posts[stored.ID] = stored
	m.slugs[stored.Slug] = stored.ID

	return stored.Clone(), nil
}

// Update updates the mutable fields of an existing post
func (m *MemoryStore) Update(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.posts[post.ID]
	if !exists {
		return fmt.Errorf("%w: id %d", ErrPostNotFound, post.ID)
	}

	stored.Title = post.Title
	stored.Content = post.Content
	stored.Image = post.Image
	stored.UpdatedAt = post.UpdatedAt
	return nil
}

// Delete removes a post from the store
func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, exists := m.posts[id]
	if !exists {
		return fmt.Errorf("%w: id %d", ErrPostNotFound, id)
	}

	delete(m.slugs, post.Slug)
	delete(m.posts, id)
	return nil
}

// GetBySlug retrieves a post from the store
func (m *MemoryStore) GetBySlug(_ context.Context, slug string) (*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.slugs[slug]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, slug)
	}

	return m.posts[id].Clone(), nil
}

// List returns the posts of one owner, or all posts when ownerID is zero, newest first
func (m *MemoryStore) List(_ context.Context, ownerID int64) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	posts := make([]*Post, 0, len(m.posts))
	for _, post := range m.posts {
		if ownerID != 0 && post.OwnerID != ownerID {
			continue
		}
		posts = append(posts, post.Clone())
	}

	SortNewestFirst(posts)
	return posts, nil
}

// SearchTitle returns posts whose title contains the query, ignoring case
func (m *MemoryStore) SearchTitle(_ context.Context, query string) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	posts := make([]*Post, 0)
	for _, post := range m.posts {
		if strings.Contains(strings.ToLower(post.Title), needle) {
			posts = append(posts, post.Clone())
		}
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ID < posts[j].ID
	})
	return posts, nil
}

// CreateAccount adds a new account to the store
func (m *MemoryStore) CreateAccount(_ context.Context, account *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usernames[account.Username]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, account.Username)
	}

	m.nextAccountID++
	stored := *account
	stored.ID = m.nextAccountID
	m.accounts[stored.ID] = &stored
	m.usernames[stored.Username] = stored.ID

	result := stored
	return &result, nil
}

// UpdateAccount overwrites an existing account
func (m *MemoryStore) UpdateAccount(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.accounts[account.ID]
	if !exists {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, account.ID)
	}

	if account.Username != stored.Username {
		if _, taken := m.usernames[account.Username]; taken {
			return fmt.Errorf("%w: %s", ErrAccountExists, account.Username)
		}
		delete(m.usernames, stored.Username)
		m.usernames[account.Username] = account.ID
	}

	updated := *account
	m.accounts[account.ID] = &updated
	return nil
}

// GetAccount retrieves an account by ID
func (m *MemoryStore) GetAccount(_ context.Context, id int64) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, exists := m.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: id %d", ErrAccountNotFound, id)
	}

	result := *account
	return &result, nil
}

// GetAccountByUsername retrieves an account by username
func (m *MemoryStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	id, exists := m.usernames[username]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	return m.GetAccount(ctx, id)
}

// GetOrCreateProfile returns the account's profile, creating it if it does not exist yet
func (m *MemoryStore) GetOrCreateProfile(_ context.Context, accountID int64, token string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[accountID]; !exists {
		return nil, fmt.Errorf("%w: id %d", ErrAccountNotFound, accountID)
	}

	profile, exists := m.profiles[accountID]
	if !exists {
		m.nextProfileID++
		profile = &Profile{ID: m.nextProfileID, AccountID: accountID, Token: token}
		m.profiles[accountID] = profile
	}

	result := *profile
	return &result, nil
}

// UpdateProfile overwrites an existing profile
func (m *MemoryStore) UpdateProfile(_ context.Context, profile *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[profile.AccountID]; !exists {
		return fmt.Errorf("%w: profile for account %d", ErrAccountNotFound, profile.AccountID)
	}

	updated := *profile
	m.profiles[profile.AccountID] = &updated
	return nil
}

// SortNewestFirst orders posts by creation time descending, breaking ties by ID descending
func SortNewestFirst(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}
