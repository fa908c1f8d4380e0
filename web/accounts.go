package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hypergopher/inkwell"
)

const (
	msgRegistered       = "Registration successful!"
	msgRegisterFailed   = "Registration failed. Please check the information."
	msgAccountUpdated   = "Your account has been updated!"
	msgInvalidLogin     = "Please enter a correct username and password."
	loginErrorFieldName = "__all__"
)

func (s *Server) login(c echo.Context) error {
	if actorFrom(c).IsAuthenticated() {
		return c.Redirect(http.StatusFound, "/")
	}

	data := s.page(c)
	data.Next = c.QueryParam("next")

	if c.Request().Method != http.MethodPost {
		return c.Render(http.StatusOK, "login", data)
	}

	data.Username = c.FormValue("username")
	if next := c.FormValue("next"); next != "" {
		data.Next = next
	}

	account, err := s.accounts.Authenticate(c.Request().Context(), data.Username, c.FormValue("password"))
	if errors.Is(err, inkwell.ErrInvalidCredentials) {
		data.Error = &inkwell.ValidationError{Field: loginErrorFieldName, Message: msgInvalidLogin}
		return c.Render(http.StatusOK, "login", data)
	} else if err != nil {
		return err
	}

	if err := s.startSession(c, account); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, safeNext(data.Next))
}

func (s *Server) register(c echo.Context) error {
	if actorFrom(c).IsAuthenticated() {
		return c.Redirect(http.StatusFound, "/")
	}

	data := s.page(c)
	if c.Request().Method != http.MethodPost {
		return c.Render(http.StatusOK, "register", data)
	}

	data.Register = inkwell.RegisterForm{
		Username:        c.FormValue("username"),
		Email:           c.FormValue("email"),
		FirstName:       c.FormValue("first_name"),
		LastName:        c.FormValue("last_name"),
		Password:        c.FormValue("password1"),
		PasswordConfirm: c.FormValue("password2"),
	}

	account, err := s.accounts.Register(c.Request().Context(), data.Register)
	if inkwell.IsValidationError(err) {
		data.Register.Password, data.Register.PasswordConfirm = "", ""
		data.Flash = &Flash{Kind: "error", Message: msgRegisterFailed}
		return s.renderInvalid(c, "register", data, err)
	} else if err != nil {
		return err
	}

	if err := s.startSession(c, account); err != nil {
		return err
	}
	s.setFlash(c, "success", msgRegistered)
	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) logout(c echo.Context) error {
	s.endSession(c)
	return c.Redirect(http.StatusFound, "/login/")
}

func (s *Server) editProfile(c echo.Context) error {
	ctx := c.Request().Context()
	actor := actorFrom(c)
	if !actor.IsAuthenticated() {
		return inkwell.ErrAuthenticationRequired
	}

	account, err := s.accounts.Get(ctx, actor.AccountID)
	if err != nil {
		return err
	}
	profile, err := s.accounts.Profile(ctx, actor.AccountID)
	if err != nil {
		return err
	}

	data := s.page(c)
	data.Account = account
	data.Profile = profile
	data.AccountForm = inkwell.UpdateAccountForm{
		Username:   account.Username,
		Email:      account.Email,
		IsVerified: profile.IsVerified,
	}

	if c.Request().Method != http.MethodPost {
		return c.Render(http.StatusOK, "profile_edit", data)
	}

	data.AccountForm = inkwell.UpdateAccountForm{
		Username:   c.FormValue("username"),
		Email:      c.FormValue("email"),
		IsVerified: c.FormValue("is_verified") != "",
	}

	updated, err := s.accounts.UpdateAccount(ctx, actor, data.AccountForm)
	if err != nil {
		return s.renderInvalid(c, "profile_edit", data, err)
	}

	// The session carries the username, so it is reissued after a rename.
	if err := s.startSession(c, updated); err != nil {
		return err
	}
	s.setFlash(c, "success", msgAccountUpdated)
	return c.Redirect(http.StatusFound, "/profile/")
}
