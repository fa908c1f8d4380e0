package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

// uploadDir is the media subdirectory post images are written to.
const uploadDir = "blog"

var imageExtensions = map[string]bool{
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".webp": true,
}

// saveUpload stores the uploaded file in field under the media root and returns its reference,
// for example "blog/<uuid>.png". It returns an empty reference when no file was sent.
func (s *Server) saveUpload(c echo.Context, field string) (string, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !imageExtensions[ext] {
		return "", &inkwell.ValidationError{Field: field, Message: "upload a valid image"}
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(s.mediaRoot, uploadDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return path.Join(uploadDir, name), nil
}

// removeUpload deletes a file written by saveUpload whose post was never saved.
func (s *Server) removeUpload(ref string) {
	if ref == "" {
		return
	}
	if err := os.Remove(filepath.Join(s.mediaRoot, filepath.FromSlash(ref))); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", slog.String("image", ref), slog.String("error", err.Error()))
	}
}
