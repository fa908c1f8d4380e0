package web

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

func (s *Server) home(c echo.Context) error {
	posts, err := s.service.Home(c.Request().Context())
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pager := inkwell.NewPaginator(posts, page, s.pageSize)

	data := s.page(c)
	data.Posts = pager.Posts
	data.Pager = &pager
	return c.Render(http.StatusOK, "home", data)
}

func (s *Server) detail(c echo.Context) error {
	post, err := s.service.ViewDetail(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}

	etag := `"` + inkwell.GenerateETag(post.Content+post.UpdatedAt.String()) + `"`
	c.Response().Header().Set("ETag", etag)
	if etagMatches(c.Request().Header.Get("If-None-Match"), etag) {
		return c.NoContent(http.StatusNotModified)
	}

	body, err := s.markdown.Render(post.Content)
	if err != nil {
		return err
	}

	data := s.page(c)
	data.Post = post
	data.Body = template.HTML(body)
	data.Owner = post.IsOwnedBy(data.Actor.AccountID)
	return c.Render(http.StatusOK, "detail", data)
}

// etagMatches reports whether an If-None-Match header lists etag, or is "*".
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) search(c echo.Context) error {
	query := c.QueryParam("q")

	posts, err := s.service.Search(c.Request().Context(), query, s.fullText)
	if err != nil {
		return err
	}

	data := s.page(c)
	data.Query = query
	data.Posts = posts
	return c.Render(http.StatusOK, "search", data)
}

func (s *Server) addBlog(c echo.Context) error {
	actor := actorFrom(c)
	if !actor.IsAuthenticated() {
		return inkwell.ErrAuthenticationRequired
	}

	data := s.page(c)
	data.Action = "/add_blog/"

	if c.Request().Method != http.MethodPost {
		return c.Render(http.StatusOK, "post_form", data)
	}

	data.Form = inkwell.PostForm{
		Title:   c.FormValue("title"),
		Content: c.FormValue("content"),
	}
	if err := data.Form.Validate(); err != nil {
		return s.renderInvalid(c, "post_form", data, err)
	}

	image, err := s.saveUpload(c, "image")
	if err != nil {
		return s.renderInvalid(c, "post_form", data, err)
	}
	data.Form.Image = image

	if _, err := s.service.SubmitCreate(c.Request().Context(), actor, data.Form); err != nil {
		s.removeUpload(image)
		return s.renderInvalid(c, "post_form", data, err)
	}

	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) editBlog(c echo.Context) error {
	ctx := c.Request().Context()
	actor := actorFrom(c)
	slug := c.Param("slug")

	post, err := s.service.Authorize(ctx, actor, slug)
	if errors.Is(err, inkwell.ErrForbidden) {
		return c.Redirect(http.StatusFound, "/")
	} else if err != nil {
		return err
	}

	data := s.page(c)
	data.Post = post
	data.Action = "/blog_update/" + post.Slug + "/"
	data.Form = inkwell.PostForm{Title: post.Title, Content: post.Content, Image: post.Image}

	if c.Request().Method != http.MethodPost {
		return c.Render(http.StatusOK, "post_form", data)
	}

	data.Form.Title = c.FormValue("title")
	data.Form.Content = c.FormValue("content")
	fields := inkwell.PostFields{
		Title:   inkwell.StringPtr(data.Form.Title),
		Content: inkwell.StringPtr(data.Form.Content),
	}
	if err := data.Form.Validate(); err != nil {
		return s.renderInvalid(c, "post_form", data, err)
	}

	// The current image is kept unless a new file is uploaded.
	image, err := s.saveUpload(c, "image")
	if err != nil {
		return s.renderInvalid(c, "post_form", data, err)
	}
	if image != "" {
		fields.Image = inkwell.StringPtr(image)
	}

	updated, err := s.service.SubmitEdit(ctx, actor, slug, fields)
	switch {
	case errors.Is(err, inkwell.ErrForbidden):
		s.removeUpload(image)
		return c.Redirect(http.StatusFound, "/")
	case err != nil:
		s.removeUpload(image)
		return s.renderInvalid(c, "post_form", data, err)
	}

	return c.Redirect(http.StatusFound, "/blog/"+updated.Slug+"/")
}

func (s *Server) deleteBlog(c echo.Context) error {
	ctx := c.Request().Context()
	actor := actorFrom(c)
	slug := c.Param("slug")

	if c.Request().Method != http.MethodPost {
		post, err := s.service.Authorize(ctx, actor, slug)
		if errors.Is(err, inkwell.ErrForbidden) {
			return c.Redirect(http.StatusFound, "/profile/")
		} else if err != nil {
			return err
		}

		data := s.page(c)
		data.Post = post
		return c.Render(http.StatusOK, "delete", data)
	}

	message, err := s.service.SubmitDelete(ctx, actor, slug)
	if errors.Is(err, inkwell.ErrForbidden) {
		return c.Redirect(http.StatusFound, "/profile/")
	} else if err != nil {
		return err
	}

	s.setFlash(c, "success", message)
	return c.Redirect(http.StatusFound, "/profile/")
}

func (s *Server) profile(c echo.Context) error {
	ctx := c.Request().Context()
	actor := actorFrom(c)

	posts, err := s.service.Profile(ctx, actor)
	if err != nil {
		return err
	}

	account, err := s.accounts.Get(ctx, actor.AccountID)
	if errors.Is(err, inkwell.ErrAccountNotFound) {
		// The account was removed after the session was issued.
		s.endSession(c)
		return c.Redirect(http.StatusFound, "/login/")
	} else if err != nil {
		return err
	}

	profile, err := s.accounts.Profile(ctx, actor.AccountID)
	if err != nil {
		return err
	}

	data := s.page(c)
	data.Posts = posts
	data.Account = account
	data.Profile = profile
	return c.Render(http.StatusOK, "profile", data)
}

// renderInvalid re-renders a form page with the validation message. Other errors are returned as is.
func (s *Server) renderInvalid(c echo.Context, name string, data *pageData, err error) error {
	var ve *inkwell.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	data.Error = ve
	return c.Render(http.StatusOK, name, data)
}
