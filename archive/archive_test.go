package archive_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/inkwell"
	"github.com/hypergopher/inkwell/archive"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T) *inkwell.MemoryStore {
	t.Helper()

	store := inkwell.NewMemoryStore()
	posts := []*inkwell.Post{
		{Title: "Hello World", Content: "# Hello\n\nFirst post.", Slug: "hello-world-1b4e28ba", OwnerID: 1, Image: "blog/a.png"},
		{Title: "System", Content: "No owner here.", Slug: "system-deadbeef"},
	}
	for i, p := range posts {
		p.CreatedAt = baseTime.Add(time.Duration(i) * time.Hour)
		p.UpdatedAt = p.CreatedAt
		_, err := store.Create(context.Background(), p)
		require.NoError(t, err)
	}
	return store
}

func TestParseFormat(t *testing.T) {
	f, err := archive.ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, archive.FormatYAML, f)

	f, err = archive.ParseFormat("toml")
	require.NoError(t, err)
	assert.Equal(t, archive.FormatTOML, f)

	_, err = archive.ParseFormat("json")
	assert.Error(t, err)
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, format := range []archive.Format{archive.FormatYAML, archive.FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			n, err := archive.Export(ctx, seedStore(t), dir, format)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.FileExists(t, filepath.Join(dir, "hello-world-1b4e28ba.md"))

			target := inkwell.NewMemoryStore()
			importer := archive.NewImporter(target, discardLogger())

			result, err := importer.Import(ctx, dir)
			require.NoError(t, err)
			assert.Equal(t, archive.Result{Imported: 2}, result)

			got, err := target.GetBySlug(ctx, "hello-world-1b4e28ba")
			require.NoError(t, err)
			assert.Equal(t, "Hello World", got.Title)
			assert.Equal(t, "# Hello\n\nFirst post.", got.Content)
			assert.Equal(t, int64(1), got.OwnerID)
			assert.Equal(t, "blog/a.png", got.Image)
			assert.True(t, baseTime.Equal(got.CreatedAt))

			system, err := target.GetBySlug(ctx, "system-deadbeef")
			require.NoError(t, err)
			assert.False(t, system.HasOwner())

			// A second import finds every slug taken
			result, err = importer.Import(ctx, dir)
			require.NoError(t, err)
			assert.Equal(t, archive.Result{Skipped: 2}, result)
		})
	}
}

func TestImporter_ReadFile(t *testing.T) {
	dir := t.TempDir()
	importer := archive.NewImporter(inkwell.NewMemoryStore(), discardLogger())

	t.Run("Slug from the path when frontmatter has none", func(t *testing.T) {
		path := filepath.Join(dir, "My First Post.md")
		require.NoError(t, os.WriteFile(path, []byte("---\ntitle: My First Post\n---\n\nBody text"), 0o644))

		post, err := importer.ReadFile(dir, path)
		require.NoError(t, err)
		assert.Equal(t, "my-first-post", post.Slug)
		assert.Equal(t, "Body text", post.Content)
		assert.False(t, post.CreatedAt.IsZero())
	})

	t.Run("Missing title is rejected", func(t *testing.T) {
		path := filepath.Join(dir, "untitled.md")
		require.NoError(t, os.WriteFile(path, []byte("+++\nslug = \"untitled\"\n+++\n\nBody"), 0o644))

		_, err := importer.ReadFile(dir, path)
		assert.True(t, inkwell.IsValidationError(err))
	})
}

func TestImport_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.md"), []byte("---\ntitle: Good\nslug: good-12345678\n---\nok"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("no frontmatter at all"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := inkwell.NewMemoryStore()
	result, err := archive.NewImporter(store, discardLogger()).Import(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, archive.Result{Imported: 1, Failed: 1}, result)

	_, err = store.GetBySlug(context.Background(), "good-12345678")
	assert.NoError(t, err)
}
