package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret)
	if err != nil {
		t.Fatalf("NewTokenManager() error: %v", err)
	}
	return m
}

// ─── Mint / Verify ──────────────────────────────────────────────────────────

func TestMintVerify(t *testing.T) {
	m := newManager(t)
	tok, err := m.Mint("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	sub, err := m.Verify(tok)
	if err != nil || sub != "user-1" {
		t.Errorf("Verify() = %q, %v", sub, err)
	}
}

func TestVerify_Expired(t *testing.T) {
	m := newManager(t)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _ := m.Mint("user-1", time.Hour)
	m.now = time.Now
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(expired) = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, _ := newManager(t).Mint("user-1", time.Hour)
	other, _ := NewTokenManager("another-secret-of-enough-length")
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong secret) = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_RejectsNoneAlg(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newManager(t).Verify(s); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(alg=none) = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_RequiresExpiry(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"})
	s, _ := tok.SignedString([]byte(testSecret))
	if _, err := newManager(t).Verify(s); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(no exp) = %v, want ErrInvalidToken", err)
	}
}

func TestNewTokenManager_ShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short"); err == nil {
		t.Error("short secret should be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}

// ─── Persistence ────────────────────────────────────────────────────────────

func TestLoadOrCreateSecret(t *testing.T) {
	home := t.TempDir()
	s1, err := LoadOrCreateSecret(home)
	if err != nil {
		t.Fatalf("LoadOrCreateSecret() error: %v", err)
	}
	if len(s1) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(s1))
	}
	info, err := os.Stat(filepath.Join(home, "keys", "jwt.secret"))
	if err != nil {
		t.Fatalf("secret file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secret perms = %v, want 0600", info.Mode().Perm())
	}
	s2, _ := LoadOrCreateSecret(home)
	if s1 != s2 {
		t.Error("second call should load the same secret")
	}
}
