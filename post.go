package inkwell

import (
	"encoding/json"
	"time"
)

// Post represents a blog post
type Post struct {
	ID        int64     `json:"id"`        // ID is assigned by the store on creation
	Title     string    `json:"title"`     // Title is the human readable title
	Content   string    `json:"content"`   // Content is the markdown body of the post
	Slug      string    `json:"slug"`      // Slug is the permanent URL-friendly identifier, never changed after creation
	OwnerID   int64     `json:"ownerId"`   // OwnerID is the account that created the post. Zero means the post has no owner.
	Image     string    `json:"image"`     // Image is an opaque reference to an uploaded asset (e.g. "blog/1234.png")
	CreatedAt time.Time `json:"createdAt"` // CreatedAt is set once when the post is created
	UpdatedAt time.Time `json:"updatedAt"` // UpdatedAt is refreshed on every update
}

// PostFields holds the mutable fields of a post. Nil fields are left untouched on update.
type PostFields struct {
	Title   *string
	Content *string
	Image   *string
}

// PostForm is the input for creating a new post.
type PostForm struct {
	Title   string
	Content string
	Image   string
}

// HasOwner returns true if the post is owned by an account
func (p *Post) HasOwner() bool {
	return p.OwnerID != 0
}

// IsOwnedBy returns true if the post is owned by the given account. Posts without an owner are owned by nobody.
func (p *Post) IsOwnedBy(accountID int64) bool {
	return p.HasOwner() && p.OwnerID == accountID
}

// HasImage returns true if the post has an image attached
func (p *Post) HasImage() bool {
	return p.Image != ""
}

// HasUpdated returns true if the post was modified after it was created
func (p *Post) HasUpdated() bool {
	return !p.UpdatedAt.IsZero() && p.UpdatedAt.After(p.CreatedAt)
}

// CreatedDate returns the creation date in the format Jan 2, 2006
func (p *Post) CreatedDate() string {
	if p.CreatedAt.IsZero() {
		return ""
	}
	return p.CreatedAt.Format("Jan 2, 2006")
}

// ReadingTime returns the estimated reading time of the content.
func (p *Post) ReadingTime() string {
	return EstimateReadingTime(p.Content)
}

// Apply copies the supplied fields onto the post. Slug and owner are never touched.
func (f PostFields) Apply(p *Post) {
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Content != nil {
		p.Content = *f.Content
	}
	if f.Image != nil {
		p.Image = *f.Image
	}
}

// Clone returns a shallow copy of the post
func (p *Post) Clone() *Post {
	c := *p
	return &c
}

// Serialize serializes the post to a byte slice
func (p *Post) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// Deserialize deserializes the byte slice to a post
func Deserialize(data []byte) (*Post, error) {
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// StringPtr is a small helper for building PostFields.
func StringPtr(s string) *string {
	return &s
}
