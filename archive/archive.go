package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/hypergopher/inkwell"
)

// Format is the frontmatter format written by Export.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatTOML:
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported frontmatter format: %s", s)
	}
}

// Meta is the frontmatter of an exported post.
type Meta struct {
	Title   string    `yaml:"title" toml:"title"`
	Slug    string    `yaml:"slug" toml:"slug"`
	Owner   int64     `yaml:"owner,omitempty" toml:"owner,omitempty"`
	Image   string    `yaml:"image,omitempty" toml:"image,omitempty"`
	Created time.Time `yaml:"created" toml:"created"`
	Updated time.Time `yaml:"updated" toml:"updated"`
}

// Result counts what an import did.
type Result struct {
	Imported int
	Skipped  int // Skipped posts already existed under the same slug.
	Failed   int
}

// Export writes every post in the store to <dir>/<slug>.md and returns how many files were written.
func Export(ctx context.Context, store inkwell.PostStore, dir string, format Format) (int, error) {
	posts, err := store.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list posts: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	for i, post := range posts {
		data, err := Marshal(post, format)
		if err != nil {
			return i, err
		}

		filePath := filepath.Join(dir, post.Slug+".md")
		if err := os.WriteFile(filePath, data, 0644); err != nil {
			return i, fmt.Errorf("failed to write file: %w", err)
		}
	}

	return len(posts), nil
}

// Marshal renders a post as markdown with frontmatter.
func Marshal(post *inkwell.Post, format Format) ([]byte, error) {
	meta := Meta{
		Title:   post.Title,
		Slug:    post.Slug,
		Owner:   post.OwnerID,
		Image:   post.Image,
		Created: post.CreatedAt.UTC(),
		Updated: post.UpdatedAt.UTC(),
	}

	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		yamlData, err := yaml.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML frontmatter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(yamlData)
		buf.WriteString("---\n\n")

	case FormatTOML:
		buf.WriteString("+++\n")
		if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to marshal TOML frontmatter: %w", err)
		}
		buf.WriteString("+++\n\n")

	default:
		return nil, fmt.Errorf("unsupported frontmatter format: %s", format)
	}

	buf.WriteString(post.Content)
	return buf.Bytes(), nil
}

// Importer reads markdown files with frontmatter back into a store.
type Importer struct {
	store  inkwell.PostStore
	logger *slog.Logger
	md     goldmark.Markdown
}

// NewImporter creates an Importer writing to store.
func NewImporter(store inkwell.PostStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Importer{
		store:  store,
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(&frontmatter.Extender{}),
		),
	}
}

// Import restores every *.md file under dir. Posts keep the slug from their frontmatter,
// falling back to one derived from the file path. Slugs that already exist are skipped.
func (im *Importer) Import(ctx context.Context, dir string) (Result, error) {
	var result Result

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		post, err := im.ReadFile(dir, path)
		if err != nil {
			im.logger.Warn("skipping unreadable post", slog.String("path", path), slog.String("error", err.Error()))
			result.Failed++
			return nil
		}

		if _, err := im.store.Create(ctx, post); errors.Is(err, inkwell.ErrPostExists) {
			im.logger.Debug("post already exists", slog.String("slug", post.Slug))
			result.Skipped++
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		result.Imported++
		return nil
	})
	if err != nil {
		return result, err
	}

	im.logger.Info("import finished",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

// ReadFile parses a single markdown file into a post that is ready to be stored.
func (im *Importer) ReadFile(rootPath, path string) (*inkwell.Post, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	meta, body, err := im.Parse(source)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(meta.Title) == "" {
		return nil, &inkwell.ValidationError{Field: "title", Message: "frontmatter has no title"}
	}

	slug := meta.Slug
	if !inkwell.IsValidSlug(slug) {
		slug = inkwell.SlugFromPath(rootPath, path)
	}
	if !inkwell.IsValidSlug(slug) {
		slug = inkwell.NewSlug(meta.Title)
	}

	created := meta.Created
	if created.IsZero() {
		created = stat.ModTime()
	}
	updated := meta.Updated
	if updated.IsZero() {
		updated = created
	}

	return &inkwell.Post{
		Title:     meta.Title,
		Content:   body,
		Slug:      slug,
		OwnerID:   meta.Owner,
		Image:     meta.Image,
		CreatedAt: created.UTC(),
		UpdatedAt: updated.UTC(),
	}, nil
}

// Parse splits a markdown document into its decoded frontmatter and the raw markdown body.
func (im *Importer) Parse(source []byte) (Meta, string, error) {
	var meta Meta

	ctx := parser.NewContext()
	im.md.Parser().Parse(text.NewReader(source), parser.WithContext(ctx))

	data := frontmatter.Get(ctx)
	if data == nil {
		return meta, string(source), nil
	}

	if err := data.Decode(&meta); err != nil {
		return meta, "", fmt.Errorf("failed to decode frontmatter: %w", err)
	}

	return meta, stripFrontmatter(source), nil
}

// stripFrontmatter returns the document after the closing frontmatter delimiter.
func stripFrontmatter(source []byte) string {
	content := string(source)
	var delim string
	switch {
	case strings.HasPrefix(content, "---"):
		delim = "---"
	case strings.HasPrefix(content, "+++"):
		delim = "+++"
	default:
		return content
	}

	lines := strings.SplitAfter(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delim {
			return strings.TrimLeft(strings.Join(lines[i+1:], ""), "\r\n")
		}
	}
	return content
}
