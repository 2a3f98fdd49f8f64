package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Role
		wantErr bool
	}{
		{"farmer", "farmer", RoleFarmer, false},
		{"buyer", "buyer", RoleBuyer, false},
		{"uppercase", "FARMER", RoleFarmer, false},
		{"mixed case", "Buyer", RoleBuyer, false},
		{"leading whitespace", " farmer", RoleFarmer, false},
		{"trailing whitespace", "buyer ", RoleBuyer, false},
		{"unknown", "admin", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func writeSession(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSession(t, `{"id":"u1","name":"Bola","role":" Buyer ","token":"tok-123"}`)

	sess, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sess.User.ID != "u1" || sess.User.Name != "Bola" {
		t.Errorf("unexpected user: %+v", sess.User)
	}
	if sess.User.Role != RoleBuyer {
		t.Errorf("role = %q, want %q (normalized at the boundary)", sess.User.Role, RoleBuyer)
	}
	if sess.Token != "tok-123" {
		t.Errorf("token = %q", sess.Token)
	}
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "nope.json")
		}},
		{"corrupt json", func(t *testing.T) string {
			return writeSession(t, `{"id":`)
		}},
		{"missing id", func(t *testing.T) string {
			return writeSession(t, `{"name":"Bola","role":"buyer"}`)
		}},
		{"invalid role", func(t *testing.T) string {
			return writeSession(t, `{"id":"u1","name":"Bola","role":"admin"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			if !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("Load() error = %v, want ErrNotAuthenticated", err)
			}
		})
	}
}
