package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

// handleError translates handler errors into pages and redirects.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status  = http.StatusInternalServerError
		message = "Something went wrong on our side."
		he      *echo.HTTPError
	)

	switch {
	case errors.Is(err, inkwell.ErrAuthenticationRequired):
		s.respond(c, c.Redirect(http.StatusFound, loginURL(c)))
		return
	case errors.Is(err, inkwell.ErrPostNotFound), errors.Is(err, inkwell.ErrAccountNotFound):
		status, message = http.StatusNotFound, "The page you were looking for does not exist."
	case errors.Is(err, inkwell.ErrForbidden):
		status, message = http.StatusForbidden, "You are not allowed to do that."
	case errors.As(err, &he):
		status = he.Code
		switch {
		case status == http.StatusNotFound:
			message = "The page you were looking for does not exist."
		case status < http.StatusInternalServerError:
			message = fmt.Sprint(he.Message)
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("uri", c.Request().RequestURI),
			slog.String("error", err.Error()))
	}

	if c.Request().Method == http.MethodHead {
		s.respond(c, c.NoContent(status))
		return
	}

	data := s.page(c)
	data.Status = status
	data.Message = message
	s.respond(c, c.Render(status, "error", data))
}

func (s *Server) respond(c echo.Context, err error) {
	if err != nil {
		s.logger.Error("failed to write error response", slog.String("error", err.Error()))
	}
}
