package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	result := WithOperation(logger, "test_operation")
	if result == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("test_op")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "test_op" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "test_op")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestUserAttr(t *testing.T) {
	attr := User("spez")
	if attr.Key != KeyUser {
		t.Errorf("User key = %q, want %q", attr.Key, KeyUser)
	}
	if attr.Value.String() != "spez" {
		t.Errorf("User value = %q, want %q", attr.Value.String(), "spez")
	}
}

func TestPortAttr(t *testing.T) {
	attr := Port(65000)
	if attr.Key != KeyPort {
		t.Errorf("Port key = %q, want %q", attr.Key, KeyPort)
	}
	if attr.Value.Int64() != 65000 {
		t.Errorf("Port value = %d, want %d", attr.Value.Int64(), 65000)
	}
}

func TestErrAttr(t *testing.T) {
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}
}

func TestErrAttr_NilError(t *testing.T) {
	attr := Err(nil)
	// Nil errors become an empty group that slog omits from output
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", attr.Key)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "empty token",
			token: "",
			want:  "<empty>",
		},
		{
			name:  "short token",
			token: "abc",
			want:  "[token:3 chars]",
		},
		{
			name:  "long token",
			token: "1234567890abcdefghij",
			want:  "[token:20 chars]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeToken(tt.token)
			if got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}
