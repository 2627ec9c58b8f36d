// Package browserstate models the short lived cookies a login transaction keeps in the browser.
package browserstate

import (
	"net/http"
	"sync"
	"time"
)

// State is one transient browser value with its security attributes.
// Secure is derived from the transport at write time, see Jar.Set.
type State struct {
	Name     string
	Value    string
	TTL      time.Duration
	Path     string
	HTTPOnly bool
	SameSite http.SameSite
}

// TransactionTTL bounds the cookies of one login transaction, the anti-forgery
// state and the saved redirect target.
const TransactionTTL = 10 * time.Minute

// New returns a State with the attributes every login cookie uses:
// path "/", HttpOnly and SameSite=Lax.
func New(name, value string, ttl time.Duration) State {
	return State{
		Name:     name,
		Value:    value,
		TTL:      ttl,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns the deletion variant of name: empty value, expired.
func Clear(name string) State {
	s := New(name, "", 0)
	s.TTL = -1

	return s
}

// Expired reports whether writing s deletes the cookie.
func (s State) Expired() bool {
	return s.TTL < 0
}

// Jar is the host side cookie access of one request.
type Jar interface {
	// Get returns the cookie value sent by the browser, "" when absent.
	Get(name string) string
	// Set queues s on the response. Later reads in the same request see the new value.
	Set(s State)
	// IsTLS reports whether the request arrived over https.
	IsTLS() bool
}

// MemoryJar is a Jar backed by a map. It is used by tests and by callers without a browser.
type MemoryJar struct {
	mu      sync.Mutex
	TLS     bool
	values  map[string]string
	written []State
}

// NewMemoryJar returns a jar pre-filled with the given cookies.
func NewMemoryJar(cookies map[string]string) *MemoryJar {
	values := make(map[string]string, len(cookies))
	for k, v := range cookies {
		values[k] = v
	}

	return &MemoryJar{values: values}
}

// Get implements Jar.
func (j *MemoryJar) Get(name string) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.values[name]
}

// Set implements Jar.
func (j *MemoryJar) Set(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.values == nil {
		j.values = map[string]string{}
	}

	if s.Expired() {
		delete(j.values, s.Name)
	} else {
		j.values[s.Name] = s.Value
	}

	j.written = append(j.written, s)
}

// IsTLS implements Jar.
func (j *MemoryJar) IsTLS() bool {
	return j.TLS
}

// Written returns every State set on the jar, in order.
func (j *MemoryJar) Written() []State {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]State(nil), j.written...)
}
