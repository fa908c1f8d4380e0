package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

const (
	sessionCookie = "inkwell_session"
	actorKey      = "inkwell.actor"
	csrfField     = "csrf_token"
)

// sessionClaims is the payload of the session cookie. The subject is the account ID.
type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// startSession signs a session token for the account and sets it as a cookie.
func (s *Server) startSession(c echo.Context, account *inkwell.Account) error {
	now := s.now()
	claims := sessionClaims{
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(s.sessionTTL),
		HttpOnly: true,
		Secure:   !s.debug,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(actorKey, inkwell.ActorFor(account))
	return nil
}

func (s *Server) endSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.debug,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(actorKey, inkwell.Anonymous)
}

// parseSession verifies a session token and returns the actor it names.
func (s *Server) parseSession(value string) (inkwell.Actor, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return inkwell.Anonymous, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return inkwell.Anonymous, errors.New("invalid session subject")
	}

	return inkwell.Actor{AccountID: id, Username: claims.Username}, nil
}

// loadSession resolves the actor of every request. Invalid or expired cookies are cleared.
func (s *Server) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(actorKey, inkwell.Anonymous)

		cookie, err := c.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			return next(c)
		}

		actor, err := s.parseSession(cookie.Value)
		if err != nil {
			s.logger.Debug("discarding session", slog.String("error", err.Error()))
			s.endSession(c)
			return next(c)
		}

		c.Set(actorKey, actor)
		return next(c)
	}
}

func actorFrom(c echo.Context) inkwell.Actor {
	if actor, ok := c.Get(actorKey).(inkwell.Actor); ok {
		return actor
	}
	return inkwell.Anonymous
}

// loginURL is where anonymous users are sent, remembering the page they asked for.
func loginURL(c echo.Context) string {
	return "/login/?next=" + url.QueryEscape(c.Request().URL.RequestURI())
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
