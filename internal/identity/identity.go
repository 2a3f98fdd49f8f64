// Package identity resolves the current user from the session state the
// marketplace login flow leaves behind. It is read-only: nothing in the
// messaging client creates or refreshes sessions.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotAuthenticated is returned when no usable session exists. The CLI
// shell must refuse to construct the messaging core when it sees this.
var ErrNotAuthenticated = errors.New("not authenticated")

// Role is the closed set of marketplace roles. Conversations only exist
// across roles (farmer with buyer), never within one.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
)

// ParseRole normalizes and validates a role string. The service has been
// observed emitting roles with stray whitespace and mixed case; this is
// the single place that cleanup happens.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleFarmer:
		return RoleFarmer, nil
	case RoleBuyer:
		return RoleBuyer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is a marketplace account as the messaging client sees it.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Session is the identity plus the API token the login flow stored.
type Session struct {
	User  User
	Token string
}

// sessionFile is the on-disk session shape written by the login flow.
type sessionFile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// Load reads the session file and validates it. A missing, unreadable, or
// malformed file yields ErrNotAuthenticated; the caller cannot fix any of
// those by retrying, only by logging in again through the marketplace.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("%w: read session %s: %v", ErrNotAuthenticated, path, err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return Session{}, fmt.Errorf("%w: parse session %s: %v", ErrNotAuthenticated, path, err)
	}
	if sf.ID == "" {
		return Session{}, fmt.Errorf("%w: session %s has no user id", ErrNotAuthenticated, path)
	}

	role, err := ParseRole(sf.Role)
	if err != nil {
		return Session{}, fmt.Errorf("%w: session %s: %v", ErrNotAuthenticated, path, err)
	}

	return Session{
		User: User{
			ID:   sf.ID,
			Name: sf.Name,
			Role: role,
		},
		Token: sf.Token,
	}, nil
}
