package sqlitestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hypergopher/inkwell"
)

// lowerFunc folds case with Unicode rules. SQLite's built-in lower() only folds ASCII.
const lowerFunc = "inkwell_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(lowerFunc, 1, foldCase)
}

func foldCase(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", lowerFunc, v)
	}
}

// SQLiteStore is an inkwell.Store backed by SQLite. Post titles and content are
// mirrored into an FTS5 table so the store also implements inkwell.FullTextSearcher.
type SQLiteStore struct {
	db *sql.DB
}

// NewDB opens the SQLite database at dbPath with the pragmas the store relies on.
func NewDB(dbPath string) (*sql.DB, error) {
	// Note: the busy_timeout pragma must be first because
	// the connection needs to be set to block on busy before WAL mode
	// is set in case it hasn't been already set by another connection.
	pragmas := "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=journal_size_limit(200000000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=temp_store(MEMORY)&_pragma=cache_size(-16000)"

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// New returns a store using an already opened database.
func New(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens the database at dbPath and returns a store using it.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Init creates the tables, indexes and triggers if they do not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	query := `
		-- Table for holding accounts
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			is_verified BOOL NOT NULL DEFAULT FALSE,
			created_at INTEGER NOT NULL
		);

		-- One profile per account
		CREATE TABLE IF NOT EXISTS profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL UNIQUE,
			is_verified BOOL NOT NULL DEFAULT FALSE,
			token TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
		);

		-- Table for holding posts
		CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			slug TEXT NOT NULL UNIQUE,
			owner_id INTEGER NULL,
			image TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS posts_owner_idx ON posts(owner_id);
		CREATE INDEX IF NOT EXISTS posts_created_idx ON posts(created_at);

		-- Create virtual table for full-text search
		CREATE VIRTUAL TABLE IF NOT EXISTS posts_search USING fts5(
			title,
			content
		);

		-- Triggers to keep the full-text search table in sync
		CREATE TRIGGER IF NOT EXISTS posts_search_ai AFTER INSERT ON posts
		BEGIN
			INSERT INTO posts_search(rowid, title, content) VALUES(new.id, new.title, new.content);
		END;

		CREATE TRIGGER IF NOT EXISTS posts_search_ad AFTER DELETE ON posts
		BEGIN
			DELETE FROM posts_search WHERE rowid = old.id;
		END;

		CREATE TRIGGER IF NOT EXISTS posts_search_au AFTER UPDATE ON posts
		BEGIN
			DELETE FROM posts_search WHERE rowid = old.id;
			INSERT INTO posts_search(rowid, title, content) VALUES(new.id, new.title, new.content);
		END;
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

const postColumns = `id, title, content, slug, owner_id, image, created_at, updated_at`

// Create inserts a new post and returns it with its assigned ID.
func (s *SQLiteStore) Create(ctx context.Context, post *inkwell.Post) (*inkwell.Post, error) {
	query := `
		INSERT INTO posts (title, content, slug, owner_id, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		post.Title, post.Content, post.Slug, nullOwner(post.OwnerID), post.Image,
		post.CreatedAt.UnixNano(), post.UpdatedAt.UnixNano())
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrPostExists, post.Slug)
	} else if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := post.Clone()
	created.ID = id
	return created, nil
}

// Update writes the mutable fields of an existing post.
func (s *SQLiteStore) Update(ctx context.Context, post *inkwell.Post) error {
	query := `UPDATE posts SET title = ?, content = ?, image = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, post.Title, post.Content, post.Image, post.UpdatedAt.UnixNano(), post.ID)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Errorf("%w: id %d", inkwell.ErrPostNotFound, post.ID))
}

// Delete removes a post by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Errorf("%w: id %d", inkwell.ErrPostNotFound, id))
}

// GetBySlug retrieves a post by its slug.
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (*inkwell.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrPostNotFound, slug)
	}
	return post, err
}

// List returns posts newest first, optionally restricted to one owner.
func (s *SQLiteStore) List(ctx context.Context, ownerID int64) ([]*inkwell.Post, error) {
	if ownerID == 0 {
		return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

// SearchTitle returns posts whose title contains query, ignoring case, in ID order.
func (s *SQLiteStore) SearchTitle(ctx context.Context, query string) ([]*inkwell.Post, error) {
	return s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE instr(`+lowerFunc+`(title), `+lowerFunc+`(?)) > 0 ORDER BY id`,
		query)
}

// FullTextSearch matches query against titles and content using the FTS5 index, best matches first.
func (s *SQLiteStore) FullTextSearch(ctx context.Context, query string, limit int) ([]*inkwell.Post, error) {
	match := ftsQuery(query)
	if match == "" {
		return []*inkwell.Post{}, nil
	}

	return s.queryPosts(ctx, `
		SELECT p.id, p.title, p.content, p.slug, p.owner_id, p.image, p.created_at, p.updated_at
		FROM posts_search
		JOIN posts p ON p.id = posts_search.rowid
		WHERE posts_search MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAccount inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *inkwell.Account) (*inkwell.Account, error) {
	query := `
		INSERT INTO accounts (username, email, first_name, last_name, password_hash, is_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.IsVerified, account.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
	} else if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *account
	created.ID = id
	return &created, nil
}

// UpdateAccount overwrites an existing account.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, account *inkwell.Account) error {
	query := `
		UPDATE accounts SET username = ?, email = ?, first_name = ?, last_name = ?, password_hash = ?, is_verified = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.IsVerified, account.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
	} else if err != nil {
		return err
	}
	return expectAffected(res, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, account.ID))
}

const accountColumns = `id, username, email, first_name, last_name, password_hash, is_verified, created_at`

// GetAccount retrieves an account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id int64) (*inkwell.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, id)
	}
	return account, err
}

// GetAccountByUsername retrieves an account by username.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*inkwell.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrAccountNotFound, username)
	}
	return account, err
}

// GetOrCreateProfile returns the account's profile, inserting one with token if it is missing.
func (s *SQLiteStore) GetOrCreateProfile(ctx context.Context, accountID int64, token string) (*inkwell.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, accountID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (account_id, is_verified, token) VALUES (?, FALSE, ?) ON CONFLICT(account_id) DO NOTHING`,
		accountID, token); err != nil {
		return nil, err
	}

	profile := &inkwell.Profile{}
	if err := tx.QueryRowContext(ctx,
		`SELECT id, account_id, is_verified, token FROM profiles WHERE account_id = ?`, accountID).
		Scan(&profile.ID, &profile.AccountID, &profile.IsVerified, &profile.Token); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile overwrites an existing profile.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, profile *inkwell.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET is_verified = ?, token = ? WHERE account_id = ?`,
		profile.IsVerified, profile.Token, profile.AccountID)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Errorf("%w: profile for account %d", inkwell.ErrAccountNotFound, profile.AccountID))
}

func (s *SQLiteStore) queryPosts(ctx context.Context, query string, args ...any) ([]*inkwell.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*inkwell.Post, error) {
	var (
		post             inkwell.Post
		owner            sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Slug, &owner, &post.Image, &created, &updated); err != nil {
		return nil, err
	}
	post.OwnerID = owner.Int64
	post.CreatedAt = time.Unix(0, created).UTC()
	post.UpdatedAt = time.Unix(0, updated).UTC()
	return &post, nil
}

func scanAccount(row scanner) (*inkwell.Account, error) {
	var (
		account inkwell.Account
		created int64
	)
	if err := row.Scan(&account.ID, &account.Username, &account.Email, &account.FirstName, &account.LastName,
		&account.PasswordHash, &account.IsVerified, &created); err != nil {
		return nil, err
	}
	account.CreatedAt = time.Unix(0, created).UTC()
	return &account, nil
}

func nullOwner(ownerID int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ownerID, Valid: ownerID != 0}
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// ftsQuery quotes every term of the user query so FTS5 operators in the input are matched literally.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
