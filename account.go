package inkwell

import (
	"encoding/json"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account is a registered user of the blog.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"passwordHash"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the one-to-one extension of an Account.
type Profile struct {
	ID         int64  `json:"id"`
	AccountID  int64  `json:"accountId"`
	IsVerified bool   `json:"isVerified"`
	Token      string `json:"token"`
}

// Actor is the identity attached to a request. The zero Actor is anonymous.
type Actor struct {
	AccountID int64
	Username  string
}

// Anonymous is the actor of an unauthenticated request.
var Anonymous = Actor{}

// ActorFor returns the actor for the given account
func ActorFor(account *Account) Actor {
	if account == nil {
		return Anonymous
	}
	return Actor{AccountID: account.ID, Username: account.Username}
}

// IsAuthenticated returns true if the actor is bound to an account
func (a Actor) IsAuthenticated() bool {
	return a.AccountID != 0
}

// SetPassword hashes and stores the password.
func (a *Account) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword returns nil if the password matches the stored hash.
func (a *Account) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}

// DisplayName returns the full name if set, otherwise the username
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.Username
	}
}

// Serialize serializes the account to a byte slice
func (a *Account) Serialize() ([]byte, error) {
	return json.Marshal(a)
}

// DeserializeAccount deserializes the byte slice to an account
func DeserializeAccount(data []byte) (*Account, error) {
	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
