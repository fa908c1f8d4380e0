package inkwell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
)

// RegisterForm is the input of the registration page.
type RegisterForm struct {
	Username        string
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PasswordConfirm string
}

// UpdateAccountForm is the input of the profile edit page.
type UpdateAccountForm struct {
	Username   string
	Email      string
	IsVerified bool
}

// Accounts handles registration, credential checks and profile management.
type Accounts struct {
	store    AccountStore
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
}

// NewAccounts creates a new Accounts service.
func NewAccounts(store AccountStore, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Accounts{
		store:    store,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: func() string { return uuid.New().String() },
	}
}

// Validate checks the registration form.
func (f RegisterForm) Validate() error {
	if err := validateUsername(f.Username); err != nil {
		return err
	}

	if err := validateEmail(f.Email); err != nil {
		return err
	}

	if f.Password != f.PasswordConfirm {
		return &ValidationError{Field: "password_confirm", Message: "the two password fields didn't match"}
	}

	if len(f.Password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("this password is too short, it must contain at least %d characters", minPasswordLength)}
	}

	if strings.IndexFunc(f.Password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return &ValidationError{Field: "password", Message: "this password is entirely numeric"}
	}

	return nil
}

// Validate checks the account edit form.
func (f UpdateAccountForm) Validate() error {
	if err := validateUsername(f.Username); err != nil {
		return err
	}
	return validateEmail(f.Email)
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: "username", Message: "this field is required"}
	}

	if len([]rune(username)) > maxUsernameLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("ensure this value has at most %d characters", maxUsernameLength)}
	}

	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.@+-", r) {
			continue
		}
		return &ValidationError{Field: "username", Message: "enter a valid username, it may contain only letters, numbers, and @/./+/-/_ characters"}
	}

	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "this field is required"}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "enter a valid email address"}
	}

	return nil
}

// Register validates the form and creates a new account with a hashed password.
func (a *Accounts) Register(ctx context.Context, form RegisterForm) (*Account, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	account := &Account{
		Username:  form.Username,
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		CreatedAt: a.now(),
	}

	if err := account.SetPassword(form.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := a.store.CreateAccount(ctx, account)
	if errors.Is(err, ErrAccountExists) {
		return nil, &ValidationError{Field: "username", Message: "a user with that username already exists"}
	} else if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	a.logger.Info("account registered", slog.String("username", created.Username))
	return created, nil
}

// Authenticate returns the account matching the credentials, or ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	account, err := a.store.GetAccountByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}

	if err := account.CheckPassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// Get returns the account with the given ID.
func (a *Accounts) Get(ctx context.Context, id int64) (*Account, error) {
	return a.store.GetAccount(ctx, id)
}

// Profile returns the account's profile, creating an unverified one with a fresh token if it is missing.
func (a *Accounts) Profile(ctx context.Context, accountID int64) (*Profile, error) {
	return a.store.GetOrCreateProfile(ctx, accountID, a.newToken())
}

// UpdateAccount saves the actor's username, email and profile verification flag.
func (a *Accounts) UpdateAccount(ctx context.Context, actor Actor, form UpdateAccountForm) (*Account, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrAuthenticationRequired
	}

	if err := form.Validate(); err != nil {
		return nil, err
	}

	account, err := a.store.GetAccount(ctx, actor.AccountID)
	if err != nil {
		return nil, err
	}

	profile, err := a.Profile(ctx, actor.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	account.Username = form.Username
	account.Email = form.Email
	account.IsVerified = form.IsVerified
	if err := a.store.UpdateAccount(ctx, account); errors.Is(err, ErrAccountExists) {
		return nil, &ValidationError{Field: "username", Message: "a user with that username already exists"}
	} else if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	profile.IsVerified = form.IsVerified
	if err := a.store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return account, nil
}
