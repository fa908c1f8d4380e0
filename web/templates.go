package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

//go:embed templates/*.html
var templateFS embed.FS

// layoutFiles are parsed into every page.
var layoutFiles = []string{"base.html", "post_list.html"}

// templates holds one parsed set per page, each sharing the base layout.
type templates struct {
	pages map[string]*template.Template
}

func newTemplates() (*templates, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}

	layout, err := template.New("layout").ParseFS(sub, layoutFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return nil, err
	}

	t := &templates{pages: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := entry.Name()
		if isLayout(name) || path.Ext(name) != ".html" {
			continue
		}

		page, err := template.Must(layout.Clone()).ParseFS(sub, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		t.pages[strings.TrimSuffix(name, ".html")] = page
	}

	return t, nil
}

func isLayout(name string) bool {
	for _, l := range layoutFiles {
		if l == name {
			return true
		}
	}
	return false
}

// Render implements echo.Renderer.
func (t *templates) Render(w io.Writer, name string, data any, _ echo.Context) error {
	page, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return page.ExecuteTemplate(w, "base", data)
}

// pageData is passed to every template.
type pageData struct {
	Actor     inkwell.Actor
	Flash     *Flash
	CSRF      string
	Query     string
	HasStatic bool

	Posts   []*inkwell.Post
	Pager   *inkwell.Paginator
	Post    *inkwell.Post
	Body    template.HTML
	Owner   bool
	Account *inkwell.Account
	Profile *inkwell.Profile

	Action      string
	Form        inkwell.PostForm
	Register    inkwell.RegisterForm
	AccountForm inkwell.UpdateAccountForm
	Username    string
	Next        string
	Error       *inkwell.ValidationError

	Status  int
	Message string
}

// page starts the data of a rendered page with the request-wide fields filled in.
func (s *Server) page(c echo.Context) *pageData {
	token, _ := c.Get("csrf").(string)
	return &pageData{
		Actor:     actorFrom(c),
		Flash:     s.popFlash(c),
		CSRF:      token,
		HasStatic: s.hasStatic,
	}
}
