package chat

import "testing"

func TestChannelID(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"already sorted", "u1", "u2", "u1-u2"},
		{"reversed", "u2", "u1", "u1-u2"},
		{"lexicographic not numeric", "u10", "u2", "u10-u2"},
		{"mongo-style ids", "64f1aa", "64f09b", "64f09b-64f1aa"},
		{"equal ids", "u1", "u1", "u1-u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChannelID(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("ChannelID(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestChannelIDCommutative(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"64f09b", "64f1aa"},
		{"a", "aa"},
	}

	for _, p := range pairs {
		if ChannelID(p[0], p[1]) != ChannelID(p[1], p[0]) {
			t.Errorf("ChannelID(%q, %q) != ChannelID(%q, %q)", p[0], p[1], p[1], p[0])
		}
	}
}
