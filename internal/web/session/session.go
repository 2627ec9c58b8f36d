package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/hashicorp/go-uuid"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/db/models"
)

// CookieName is the name of the host session cookie.
const CookieName = "session"

const idBytes = 32

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")

	// ErrNoUser is returned when a session is started without a stored account.
	ErrNoUser = errors.New("session needs a stored user")
)

// Store is the global session store instance.
var Store *session.Store //nolint:gochecknoglobals

// Data represents the session data structure.
type Data struct {
	User models.User
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return Store.Storage.Set(sessionID, out, exp) //nolint:wrapcheck
}

// Read reads the session data for the given session ID.
func (s *Data) Read(sessionID string) error {
	if sessionID == "" {
		return ErrNotFound
	}

	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if len(byteData) == 0 {
		return ErrNotFound
	}

	return json.Unmarshal(byteData, s) //nolint:wrapcheck
}

// Delete removes the session with the given ID.
func Delete(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	return Store.Storage.Delete(sessionID) //nolint:wrapcheck
}

// Init initializes the session store with the provided storage backend.
// A nil storage selects fiber's in-memory storage.
func Init(storage fiber.Storage) {
	Store = session.New(session.Config{
		Storage: storage,
	})
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	b, err := uuid.GenerateRandomBytes(idBytes)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return hex.EncodeToString(b), nil
}

// Starter opens host sessions. It is used by the local login form and the Google sign-in.
type Starter struct {
	Expiry time.Duration
}

// Start stores a session for user and hands its id to the browser.
func (s Starter) Start(_ context.Context, jar browserstate.Jar, user *models.User) error {
	if user == nil || user.ID == 0 {
		return ErrNoUser
	}

	id, err := GenerateSessionID()
	if err != nil {
		return err
	}

	data := &Data{User: *user}
	if err = data.Write(id, s.Expiry); err != nil {
		return err
	}

	jar.Set(browserstate.New(CookieName, id, s.Expiry))

	return nil
}

// End removes the session named by the browser's cookie and clears the cookie.
func End(jar browserstate.Jar) error {
	err := Delete(jar.Get(CookieName))
	jar.Set(browserstate.Clear(CookieName))

	return err
}
