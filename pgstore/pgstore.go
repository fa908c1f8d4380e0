package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hypergopher/inkwell"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(150) NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		token TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(1000) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		slug VARCHAR(1000) NOT NULL UNIQUE,
		owner_id BIGINT NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS posts_owner_idx ON posts(owner_id);
	CREATE INDEX IF NOT EXISTS posts_created_idx ON posts(created_at);
	CREATE INDEX IF NOT EXISTS posts_search_idx ON posts
		USING GIN (to_tsvector('english', title || ' ' || content));
`

const postColumns = `id, title, content, slug, owner_id, image, created_at, updated_at`

const accountColumns = `id, username, email, first_name, last_name, password_hash, is_verified, created_at`

// PGStore is an inkwell.Store backed by PostgreSQL through a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// New returns a store using an existing pool.
func New(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Connect opens a pool for the connection URL and verifies it with a ping.
func Connect(ctx context.Context, url string) (*PGStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(pool), nil
}

// Init creates the tables and indexes if they do not exist.
func (s *PGStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Create inserts a new post and returns it with its assigned ID.
func (s *PGStore) Create(ctx context.Context, post *inkwell.Post) (*inkwell.Post, error) {
	created := post.Clone()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO posts (title, content, slug, owner_id, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		post.Title, post.Content, post.Slug, nullOwner(post.OwnerID), post.Image, post.CreatedAt, post.UpdatedAt,
	).Scan(&created.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrPostExists, post.Slug)
	} else if err != nil {
		return nil, err
	}
	return created, nil
}

// Update writes the mutable fields of an existing post.
func (s *PGStore) Update(ctx context.Context, post *inkwell.Post) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET title = $1, content = $2, image = $3, updated_at = $4 WHERE id = $5`,
		post.Title, post.Content, post.Image, post.UpdatedAt, post.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", inkwell.ErrPostNotFound, post.ID)
	}
	return nil
}

// Delete removes a post by ID.
func (s *PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", inkwell.ErrPostNotFound, id)
	}
	return nil
}

// GetBySlug retrieves a post by its slug.
func (s *PGStore) GetBySlug(ctx context.Context, slug string) (*inkwell.Post, error) {
	post, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrPostNotFound, slug)
	}
	return post, err
}

// List returns posts newest first, optionally restricted to one owner.
func (s *PGStore) List(ctx context.Context, ownerID int64) ([]*inkwell.Post, error) {
	if ownerID == 0 {
		return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
}

// SearchTitle returns posts whose title contains query, ignoring case, in ID order.
func (s *PGStore) SearchTitle(ctx context.Context, query string) ([]*inkwell.Post, error) {
	// lower() follows the database's ctype locale, so case is folded here instead.
	posts, err := s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id`)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	matched := make([]*inkwell.Post, 0, len(posts))
	for _, post := range posts {
		if strings.Contains(strings.ToLower(post.Title), query) {
			matched = append(matched, post)
		}
	}
	return matched, nil
}

// FullTextSearch ranks posts against query using PostgreSQL text search.
func (s *PGStore) FullTextSearch(ctx context.Context, query string, limit int) ([]*inkwell.Post, error) {
	return s.queryPosts(ctx, `
		SELECT `+postColumns+`
		FROM posts, plainto_tsquery('english', $1) q
		WHERE to_tsvector('english', title || ' ' || content) @@ q
		ORDER BY ts_rank(to_tsvector('english', title || ' ' || content), q) DESC, id
		LIMIT $2`, query, limit)
}

// Close closes the pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateAccount inserts a new account.
func (s *PGStore) CreateAccount(ctx context.Context, account *inkwell.Account) (*inkwell.Account, error) {
	created := *account
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, first_name, last_name, password_hash, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.IsVerified, account.CreatedAt,
	).Scan(&created.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
	} else if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateAccount overwrites an existing account.
func (s *PGStore) UpdateAccount(ctx context.Context, account *inkwell.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET username = $1, email = $2, first_name = $3, last_name = $4, password_hash = $5, is_verified = $6
		WHERE id = $7`,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.IsVerified, account.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
	} else if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, account.ID)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *PGStore) GetAccount(ctx context.Context, id int64) (*inkwell.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, id)
	}
	return account, err
}

// GetAccountByUsername retrieves an account by username.
func (s *PGStore) GetAccountByUsername(ctx context.Context, username string) (*inkwell.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrAccountNotFound, username)
	}
	return account, err
}

// GetOrCreateProfile returns the account's profile, inserting one with token if it is missing.
func (s *PGStore) GetOrCreateProfile(ctx context.Context, accountID int64, token string) (*inkwell.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, accountID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO profiles (account_id, is_verified, token) VALUES ($1, FALSE, $2) ON CONFLICT (account_id) DO NOTHING`,
		accountID, token); err != nil {
		return nil, err
	}

	profile := &inkwell.Profile{}
	if err := tx.QueryRow(ctx,
		`SELECT id, account_id, is_verified, token FROM profiles WHERE account_id = $1`, accountID).
		Scan(&profile.ID, &profile.AccountID, &profile.IsVerified, &profile.Token); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile overwrites an existing profile.
func (s *PGStore) UpdateProfile(ctx context.Context, profile *inkwell.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET is_verified = $1, token = $2 WHERE account_id = $3`,
		profile.IsVerified, profile.Token, profile.AccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: profile for account %d", inkwell.ErrAccountNotFound, profile.AccountID)
	}
	return nil
}

func (s *PGStore) queryPosts(ctx context.Context, query string, args ...any) ([]*inkwell.Post, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]*inkwell.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanPost(row pgx.Row) (*inkwell.Post, error) {
	var (
		post  inkwell.Post
		owner *int64
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Slug, &owner, &post.Image, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, err
	}
	if owner != nil {
		post.OwnerID = *owner
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}

func scanAccount(row pgx.Row) (*inkwell.Account, error) {
	var account inkwell.Account
	if err := row.Scan(&account.ID, &account.Username, &account.Email, &account.FirstName, &account.LastName,
		&account.PasswordHash, &account.IsVerified, &account.CreatedAt); err != nil {
		return nil, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

func nullOwner(ownerID int64) *int64 {
	if ownerID == 0 {
		return nil
	}
	return &ownerID
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
