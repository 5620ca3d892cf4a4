package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genai"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	const testKey = "test-api-key-12345"
	t.Setenv("GEMINI_API_KEY", testKey)

	key, source, err := ResolveAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != testKey {
		t.Errorf("expected key %q, got %q", testKey, key)
	}
	if source != SourceEnv {
		t.Errorf("expected source %q, got %q", SourceEnv, source)
	}
}

func TestGetAPIKeyTrimsWhitespace(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "  padded-key\n")

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "padded-key" {
		t.Errorf("expected trimmed key, got %q", key)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey()
	if err == nil {
		t.Fatal("expected error when no API key source available")
	}

	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeNoKey {
		t.Errorf("expected ErrTypeNoKey validation error, got %v", err)
	}
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := filepath.Join(home, ".gemini-vogue", "credentials.gpg")
	if path != expected {
		t.Errorf("expected path %q, got %q", expected, path)
	}
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := getFromGPG(); err == nil {
		t.Error("expected error when credentials file does not exist")
	}
}

func TestFindPassphraseFileSkipsInsecure(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, passphraseFile)
	if err := os.WriteFile(path, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, ok := findPassphraseFile(); ok && got == path {
		t.Error("world-readable passphrase file should be skipped")
	}

	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if got, ok := findPassphraseFile(); !ok || got != path {
		t.Errorf("expected owner-only passphrase file to be used, got %q %v", got, ok)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ValidationErrorType
	}{
		{"forbidden", genai.APIError{Code: 403}, ErrTypeInvalidKey},
		{"bad request", genai.APIError{Code: 400}, ErrTypeInvalidKey},
		{"rate limited", genai.APIError{Code: 429}, ErrTypeQuotaExceeded},
		{"unavailable", genai.APIError{Code: 503}, ErrTypeNetworkError},
		{"dial", errors.New("dial tcp 1.2.3.4:443: connection refused"), ErrTypeNetworkError},
		{"other", errors.New("strange"), ErrTypeUnknown},
	}

	for _, tt := range tests {
		got := classifyError(tt.err)
		if got.Type != tt.want {
			t.Errorf("%s: expected type %d, got %d", tt.name, tt.want, got.Type)
		}
		if got.Unwrap() == nil {
			t.Errorf("%s: classified error should wrap the cause", tt.name)
		}
	}

	if classifyError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}
