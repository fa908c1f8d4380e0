package inkwell_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergopher/inkwell"
)

func validRegisterForm() inkwell.RegisterForm {
	return inkwell.RegisterForm{
		Username:        "alice",
		Email:           "alice@example.com",
		FirstName:       "Alice",
		LastName:        "Liddell",
		Password:        "rabbit-hole",
		PasswordConfirm: "rabbit-hole",
	}
}

func TestRegisterForm_Validate(t *testing.T) {
	cases := []struct {
		name        string
		mutate      func(f *inkwell.RegisterForm)
		expectField string
	}{
		{name: "Valid form", mutate: func(f *inkwell.RegisterForm) {}},
		{name: "Missing username", mutate: func(f *inkwell.RegisterForm) { f.Username = "" }, expectField: "username"},
		{name: "Username with spaces", mutate: func(f *inkwell.RegisterForm) { f.Username = "alice liddell" }, expectField: "username"},
		{name: "Missing email", mutate: func(f *inkwell.RegisterForm) { f.Email = "" }, expectField: "email"},
		{name: "Invalid email", mutate: func(f *inkwell.RegisterForm) { f.Email = "not-an-email" }, expectField: "email"},
		{name: "Password mismatch", mutate: func(f *inkwell.RegisterForm) { f.PasswordConfirm = "other-password" }, expectField: "password_confirm"},
		{name: "Short password", mutate: func(f *inkwell.RegisterForm) { f.Password, f.PasswordConfirm = "short", "short" }, expectField: "password"},
		{name: "Numeric password", mutate: func(f *inkwell.RegisterForm) { f.Password, f.PasswordConfirm = "12345678", "12345678" }, expectField: "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validRegisterForm()
			tc.mutate(&form)

			err := form.Validate()
			if tc.expectField == "" {
				assert.NoError(t, err)
				return
			}

			var ve *inkwell.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.expectField, ve.Field)
		})
	}
}

func TestAccounts_RegisterAndAuthenticate(t *testing.T) {
	store := inkwell.NewMemoryStore()
	accounts := inkwell.NewAccounts(store, discardLogger())
	ctx := context.Background()

	account, err := accounts.Register(ctx, validRegisterForm())
	require.NoError(t, err)
	assert.NotZero(t, account.ID)
	assert.NotEqual(t, "rabbit-hole", account.PasswordHash)

	_, err = accounts.Register(ctx, validRegisterForm())
	var ve *inkwell.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)

	got, err := accounts.Authenticate(ctx, "alice", "rabbit-hole")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = accounts.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, inkwell.ErrInvalidCredentials)

	_, err = accounts.Authenticate(ctx, "nobody", "rabbit-hole")
	assert.ErrorIs(t, err, inkwell.ErrInvalidCredentials)
}

func TestAccounts_ProfileIsCreatedOnce(t *testing.T) {
	store := inkwell.NewMemoryStore()
	accounts := inkwell.NewAccounts(store, discardLogger())
	ctx := context.Background()

	account, err := accounts.Register(ctx, validRegisterForm())
	require.NoError(t, err)

	first, err := accounts.Profile(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, first.IsVerified)
	assert.NotEmpty(t, first.Token)

	second, err := accounts.Profile(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Token, second.Token)

	_, err = accounts.Profile(ctx, 999)
	assert.ErrorIs(t, err, inkwell.ErrAccountNotFound)
}

func TestAccounts_UpdateAccount(t *testing.T) {
	store := inkwell.NewMemoryStore()
	accounts := inkwell.NewAccounts(store, discardLogger())
	ctx := context.Background()

	account, err := accounts.Register(ctx, validRegisterForm())
	require.NoError(t, err)

	other := validRegisterForm()
	other.Username = "bob"
	_, err = accounts.Register(ctx, other)
	require.NoError(t, err)

	actor := inkwell.ActorFor(account)

	updated, err := accounts.UpdateAccount(ctx, actor, inkwell.UpdateAccountForm{
		Username:   "alice2",
		Email:      "alice2@example.com",
		IsVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)

	profile, err := accounts.Profile(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsVerified)

	_, err = accounts.UpdateAccount(ctx, actor, inkwell.UpdateAccountForm{Username: "bob", Email: "bob@example.com"})
	assert.True(t, inkwell.IsValidationError(err))

	_, err = accounts.UpdateAccount(ctx, inkwell.Anonymous, inkwell.UpdateAccountForm{Username: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, inkwell.ErrAuthenticationRequired)

	_, err = accounts.Authenticate(ctx, "alice2", "rabbit-hole")
	assert.NoError(t, err)
}
