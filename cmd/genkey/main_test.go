package main

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestReadKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "newline terminated",
			input: "super-secret-key\n",
			want:  "super-secret-key",
		},
		{
			name:  "crlf terminated",
			input: "super-secret-key\r\n",
			want:  "super-secret-key",
		},
		{
			name:  "no trailing newline",
			input: "super-secret-key",
			want:  "super-secret-key",
		},
		{
			name:  "only first line used",
			input: "first-line-key\nsecond line ignored\n",
			want:  "first-line-key",
		},
		{
			name:    "too short",
			input:   "short\n",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "over bcrypt limit",
			input:   strings.Repeat("k", 73) + "\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := readKey(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(key) != tt.want {
				t.Errorf("readKey() = %q, want %q", key, tt.want)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	if err := validateKey([]byte("12345678")); err != nil {
		t.Errorf("8-character key should be valid: %v", err)
	}
	if err := validateKey([]byte("1234567")); err == nil {
		t.Error("7-character key should be rejected")
	}
	if err := validateKey([]byte(strings.Repeat("x", 72))); err != nil {
		t.Errorf("72-byte key should be valid: %v", err)
	}
	if err := validateKey([]byte(strings.Repeat("x", 73))); err == nil {
		t.Error("73-byte key should be rejected")
	}
}

func TestHashKeyRoundTrip(t *testing.T) {
	key := []byte("roundtrip-test-key")

	// MinCost keeps the test fast; production uses DefaultCost
	hash, err := hashKey(key, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashKey failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash %q does not look like bcrypt", hash)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), key); err != nil {
		t.Errorf("Hash does not verify against the key: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong-key")); err == nil {
		t.Error("Hash verified against the wrong key")
	}
}

func TestHashKeyInvalidCost(t *testing.T) {
	if _, err := hashKey([]byte("some-valid-key"), bcrypt.MaxCost+1); err == nil {
		t.Error("Expected an error for an out-of-range cost")
	}
}
