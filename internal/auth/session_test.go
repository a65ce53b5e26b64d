package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/domain"
)

func testEncryptor(t *testing.T) crypto.Encryptor {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	enc, err := crypto.NewAESEncryptor(key)
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}
	return enc
}

func TestSealOpenSession(t *testing.T) {
	enc := testEncryptor(t)
	user := &domain.User{ID: uuid.New(), Email: "an@example.com", Role: "customer"}

	token, err := SealSession(enc, user, time.Hour)
	if err != nil {
		t.Fatalf("SealSession: %v", err)
	}

	opened, err := OpenSession(enc, token)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if opened.UserID != user.ID || opened.Email != user.Email || opened.Role != user.Role {
		t.Errorf("round trip mismatch: %+v", opened)
	}
}

func TestOpenSessionExpired(t *testing.T) {
	enc := testEncryptor(t)
	user := &domain.User{ID: uuid.New(), Email: "an@example.com", Role: "customer"}

	token, err := SealSession(enc, user, time.Nanosecond)
	if err != nil {
		t.Fatalf("SealSession: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := OpenSession(enc, token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestOpenSessionTampered(t *testing.T) {
	enc := testEncryptor(t)
	user := &domain.User{ID: uuid.New(), Email: "an@example.com", Role: "customer"}

	token, err := SealSession(enc, user, time.Hour)
	if err != nil {
		t.Fatalf("SealSession: %v", err)
	}

	tampered := []byte(token)
	if tampered[5] == 'A' {
		tampered[5] = 'B'
	} else {
		tampered[5] = 'A'
	}
	if _, err := OpenSession(enc, string(tampered)); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("expected ErrSessionInvalid, got %v", err)
	}

	other := testEncryptor(t)
	if _, err := OpenSession(other, token); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("expected ErrSessionInvalid under a different key, got %v", err)
	}
}
