package bboltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.etcd.io/bbolt"

	"github.com/hypergopher/inkwell"
)

const (
	bboltFile      = "inkwell.db"
	bleveFile      = "inkwell.bleve"
	bucketPosts    = "posts"
	bucketPostIDs  = "post_ids"
	bucketAccounts = "accounts"
	bucketUsers    = "usernames"
	bucketProfiles = "profiles"
)

var errBucketNotFound = errors.New("bucket not found")

// searchDocument is the part of a post that is indexed in bleve.
type searchDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BBoltStore keeps posts and accounts in a bbolt database and indexes posts in bleve.
type BBoltStore struct {
	bleveIndex bleve.Index
	boltIndex  *bbolt.DB
	dataDir    string // dataDir is the directory where the bolt file and bleve index live.
	logger     *slog.Logger
	mu         sync.Mutex
}

// New creates a new BBoltStore rooted at dataDir.
func New(dataDir string, logger *slog.Logger) *BBoltStore {
	if logger == nil {
		logger = defaultLogger()
	}
	return &BBoltStore{
		dataDir: dataDir,
		logger:  logger,
	}
}

// Init initializes the BBolt and Bleve indexes
func (bbs *BBoltStore) Init(_ context.Context) error {
	if err := os.MkdirAll(bbs.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	boltIndex, err := bbs.initBolt()
	if err != nil {
		return fmt.Errorf("failed to initialize bbolt: %w", err)
	}
	bbs.boltIndex = boltIndex

	bleveIndex, err := bbs.initBleve()
	if err != nil {
		return fmt.Errorf("failed to initialize bleve: %w", err)
	}
	bbs.bleveIndex = bleveIndex

	return nil
}

// Clear removes every post and account by deleting and recreating both indexes.
func (bbs *BBoltStore) Clear() error {
	if err := bbs.Close(); err != nil {
		return fmt.Errorf("failed to close indexes: %w", err)
	}

	// Remove the bolt and bleve files
	boltPath := filepath.Join(bbs.dataDir, bboltFile)
	blevePath := filepath.Join(bbs.dataDir, bleveFile)

	if err := os.Remove(boltPath); err != nil {
		return fmt.Errorf("failed to remove bolt file: %w", err)
	}

	if err := os.RemoveAll(blevePath); err != nil {
		return fmt.Errorf("failed to remove bleve file: %w", err)
	}

	// Reinitialize the indexes
	boltIndex, err := bbs.initBolt()
	if err != nil {
		return fmt.Errorf("failed to reinitialize bolt: %w", err)
	}

	bleveIndex, err := bbs.initBleve()
	if err != nil {
		return fmt.Errorf("failed to reinitialize bleve: %w", err)
	}

	bbs.boltIndex = boltIndex
	bbs.bleveIndex = bleveIndex

	return nil
}

// Close closes both indexes.
func (bbs *BBoltStore) Close() error {
	if bbs.boltIndex != nil {
		if err := bbs.boltIndex.Close(); err != nil {
			return err
		}
		bbs.boltIndex = nil
	}

	if bbs.bleveIndex != nil {
		err := bbs.bleveIndex.Close()
		bbs.bleveIndex = nil
		return err
	}

	return nil
}

// Create stores a new post under its slug, assigns it the next ID and indexes it for search.
func (bbs *BBoltStore) Create(_ context.Context, post *inkwell.Post) (*inkwell.Post, error) {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	created := post.Clone()
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		ids := tx.Bucket([]byte(bucketPostIDs))
		if b == nil || ids == nil {
			return errBucketNotFound
		}

		if b.Get([]byte(post.Slug)) != nil {
			return fmt.Errorf("%w: %s", inkwell.ErrPostExists, post.Slug)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate post id: %w", err)
		}
		created.ID = int64(seq)

		postBytes, err := created.Serialize()
		if err != nil {
			return fmt.Errorf("failed to serialize post: %w", err)
		}

		if err := b.Put([]byte(created.Slug), postBytes); err != nil {
			return fmt.Errorf("failed to put post in bucket: %w", err)
		}

		return ids.Put(itob(created.ID), []byte(created.Slug))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create post in bolt: %w", err)
	}

	bbs.index(created)

	return created, nil
}

// Update overwrites the title, content, image and updated timestamp of a stored post.
func (bbs *BBoltStore) Update(_ context.Context, post *inkwell.Post) error {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	var updated *inkwell.Post
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		stored, err := postByID(tx, post.ID)
		if err != nil {
			return err
		}

		stored.Title = post.Title
		stored.Content = post.Content
		stored.Image = post.Image
		stored.UpdatedAt = post.UpdatedAt

		postBytes, err := stored.Serialize()
		if err != nil {
			return fmt.Errorf("failed to serialize post: %w", err)
		}

		updated = stored
		return tx.Bucket([]byte(bucketPosts)).Put([]byte(stored.Slug), postBytes)
	})
	if err != nil {
		return fmt.Errorf("failed to update post in bolt: %w", err)
	}

	bbs.index(updated)
	return nil
}

// Delete removes a post by ID from bolt and from the search index.
func (bbs *BBoltStore) Delete(_ context.Context, id int64) error {
	bbs.mu.Lock()
	defer bbs.mu.Unlock()

	var slug string
	if err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		post, err := postByID(tx, id)
		if err != nil {
			return err
		}
		slug = post.Slug

		if err := tx.Bucket([]byte(bucketPosts)).Delete([]byte(slug)); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}

		return tx.Bucket([]byte(bucketPostIDs)).Delete(itob(id))
	}); err != nil {
		return fmt.Errorf("failed to update bolt: %w", err)
	}

	if err := bbs.bleveIndex.Delete(slug); err != nil {
		return fmt.Errorf("failed to delete post from bleve: %w", err)
	}

	return nil
}

// GetBySlug retrieves a post by its slug.
func (bbs *BBoltStore) GetBySlug(_ context.Context, slug string) (*inkwell.Post, error) {
	var post *inkwell.Post
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return errBucketNotFound
		}

		postBytes := b.Get([]byte(slug))
		if postBytes == nil {
			return inkwell.ErrPostNotFound
		}

		var err error
		post, err = inkwell.Deserialize(postBytes)
		if err != nil {
			return fmt.Errorf("error deserializing post: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error getting post %s: %w", slug, err)
	}
	return post, nil
}

// List returns posts newest first, optionally restricted to one owner.
func (bbs *BBoltStore) List(_ context.Context, ownerID int64) ([]*inkwell.Post, error) {
	posts, err := bbs.collectPosts(func(p *inkwell.Post) bool {
		return ownerID == 0 || p.OwnerID == ownerID
	})
	if err != nil {
		return nil, err
	}

	inkwell.SortNewestFirst(posts)
	return posts, nil
}

// SearchTitle returns posts whose title contains query, ignoring case, in ID order.
func (bbs *BBoltStore) SearchTitle(_ context.Context, query string) ([]*inkwell.Post, error) {
	needle := strings.ToLower(query)
	posts, err := bbs.collectPosts(func(p *inkwell.Post) bool {
		return strings.Contains(strings.ToLower(p.Title), needle)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ID < posts[j].ID
	})
	return posts, nil
}

// FullTextSearch matches query against the indexed titles and content, best matches first.
func (bbs *BBoltStore) FullTextSearch(ctx context.Context, query string, limit int) ([]*inkwell.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*inkwell.Post{}, nil
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2)

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	request := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(titleQuery, contentQuery), limit, 0, false)
	result, err := bbs.bleveIndex.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("error searching for posts: %w", err)
	}

	posts := make([]*inkwell.Post, 0, len(result.Hits))
	for _, hit := range result.Hits {
		post, err := bbs.GetBySlug(ctx, hit.ID)
		if errors.Is(err, inkwell.ErrPostNotFound) {
			bbs.logger.Warn("search hit without a stored post", slog.String("slug", hit.ID))
			continue
		} else if err != nil {
			return nil, fmt.Errorf("error getting post %s: %w", hit.ID, err)
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// CreateAccount stores a new account and assigns it the next ID.
func (bbs *BBoltStore) CreateAccount(_ context.Context, account *inkwell.Account) (*inkwell.Account, error) {
	created := *account
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket([]byte(bucketAccounts))
		users := tx.Bucket([]byte(bucketUsers))
		if accounts == nil || users == nil {
			return errBucketNotFound
		}

		if users.Get([]byte(account.Username)) != nil {
			return fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
		}

		seq, err := accounts.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate account id: %w", err)
		}
		created.ID = int64(seq)

		return putAccount(tx, &created)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &created, nil
}

// UpdateAccount overwrites an existing account, moving its username index entry if it changed.
func (bbs *BBoltStore) UpdateAccount(_ context.Context, account *inkwell.Account) error {
	return bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		stored, err := accountByID(tx, account.ID)
		if err != nil {
			return err
		}

		users := tx.Bucket([]byte(bucketUsers))
		if stored.Username != account.Username {
			if users.Get([]byte(account.Username)) != nil {
				return fmt.Errorf("%w: %s", inkwell.ErrAccountExists, account.Username)
			}
			if err := users.Delete([]byte(stored.Username)); err != nil {
				return err
			}
		}

		return putAccount(tx, account)
	})
}

// GetAccount retrieves an account by ID.
func (bbs *BBoltStore) GetAccount(_ context.Context, id int64) (*inkwell.Account, error) {
	var account *inkwell.Account
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		var err error
		account, err = accountByID(tx, id)
		return err
	})
	return account, err
}

// GetAccountByUsername retrieves an account by username.
func (bbs *BBoltStore) GetAccountByUsername(_ context.Context, username string) (*inkwell.Account, error) {
	var account *inkwell.Account
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucketUsers)).Get([]byte(username))
		if id == nil {
			return fmt.Errorf("%w: %s", inkwell.ErrAccountNotFound, username)
		}

		var err error
		account, err = accountByID(tx, btoi(id))
		return err
	})
	return account, err
}

// GetOrCreateProfile returns the account's profile, creating it with token if it is missing.
func (bbs *BBoltStore) GetOrCreateProfile(_ context.Context, accountID int64, token string) (*inkwell.Profile, error) {
	profile := &inkwell.Profile{}
	err := bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		if _, err := accountByID(tx, accountID); err != nil {
			return err
		}

		profiles := tx.Bucket([]byte(bucketProfiles))
		if data := profiles.Get(itob(accountID)); data != nil {
			return json.Unmarshal(data, profile)
		}

		seq, err := profiles.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate profile id: %w", err)
		}

		*profile = inkwell.Profile{ID: int64(seq), AccountID: accountID, Token: token}
		return putProfile(tx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile overwrites an existing profile.
func (bbs *BBoltStore) UpdateProfile(_ context.Context, profile *inkwell.Profile) error {
	return bbs.boltIndex.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketProfiles)).Get(itob(profile.AccountID)) == nil {
			return fmt.Errorf("%w: profile for account %d", inkwell.ErrAccountNotFound, profile.AccountID)
		}
		return putProfile(tx, profile)
	})
}

func (bbs *BBoltStore) collectPosts(keep func(*inkwell.Post) bool) ([]*inkwell.Post, error) {
	posts := make([]*inkwell.Post, 0)
	err := bbs.boltIndex.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPosts))
		if b == nil {
			return errBucketNotFound
		}

		return b.ForEach(func(_, v []byte) error {
			post, err := inkwell.Deserialize(v)
			if err != nil {
				return fmt.Errorf("error deserializing post: %w", err)
			}
			if keep(post) {
				posts = append(posts, post)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// index adds post to the bleve index. Bolt already holds the post, so a failure
// only leaves full-text search stale and is logged rather than returned.
func (bbs *BBoltStore) index(post *inkwell.Post) {
	if err := bbs.bleveIndex.Index(post.Slug, searchDocument{Title: post.Title, Content: post.Content}); err != nil {
		bbs.logger.Warn("failed to index post in bleve",
			slog.String("slug", post.Slug),
			slog.String("error", err.Error()))
	}
}

func (bbs *BBoltStore) initBolt() (*bbolt.DB, error) {
	var err error
	boltPath := filepath.Join(bbs.dataDir, bboltFile)
	boltIndex, err := bbolt.Open(boltPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt index: %w", err)
	}

	err = boltIndex.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketPosts, bucketPostIDs, bucketAccounts, bucketUsers, bucketProfiles} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})

	if err != nil {
		_ = boltIndex.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return boltIndex, nil
}

func (bbs *BBoltStore) initBleve() (bleve.Index, error) {
	index, err := bleve.Open(filepath.Join(bbs.dataDir, bleveFile))
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		bbs.logger.Debug("Creating new bleve index")
		indexMapping := defineBleveMapping()
		index, err = bleve.NewUsing(filepath.Join(bbs.dataDir, bleveFile), indexMapping, bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open bleve index: %w", err)
	}

	return index, nil
}

func defineBleveMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("content", bleve.NewTextFieldMapping())

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{
			AddSource: false,
			Level:     slog.LevelDebug,
		}))
}

func postByID(tx *bbolt.Tx, id int64) (*inkwell.Post, error) {
	slug := tx.Bucket([]byte(bucketPostIDs)).Get(itob(id))
	if slug == nil {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrPostNotFound, id)
	}

	data := tx.Bucket([]byte(bucketPosts)).Get(slug)
	if data == nil {
		return nil, fmt.Errorf("%w: %s", inkwell.ErrPostNotFound, slug)
	}

	return inkwell.Deserialize(data)
}

func accountByID(tx *bbolt.Tx, id int64) (*inkwell.Account, error) {
	data := tx.Bucket([]byte(bucketAccounts)).Get(itob(id))
	if data == nil {
		return nil, fmt.Errorf("%w: id %d", inkwell.ErrAccountNotFound, id)
	}
	return inkwell.DeserializeAccount(data)
}

func putAccount(tx *bbolt.Tx, account *inkwell.Account) error {
	data, err := account.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize account: %w", err)
	}

	if err := tx.Bucket([]byte(bucketAccounts)).Put(itob(account.ID), data); err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketUsers)).Put([]byte(account.Username), itob(account.ID))
}

func putProfile(tx *bbolt.Tx, profile *inkwell.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}
	return tx.Bucket([]byte(bucketProfiles)).Put(itob(profile.AccountID), data)
}

// itob encodes an ID as a big-endian key so bolt keeps IDs in numeric order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
