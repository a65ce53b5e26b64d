package storefront

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tranvu/mercato/internal/auth"
	"github.com/tranvu/mercato/internal/cookie"
	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/domain"
)

func newSessionFixture(t *testing.T) (*SessionHandler, crypto.Encryptor) {
	t.Helper()
	enc, err := crypto.NewAESEncryptor(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewAESEncryptor: %v", err)
	}
	h := NewSessionHandler(enc, cookie.NewConfig("", false), slog.New(slog.DiscardHandler))
	return h, enc
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestMeRefreshesSession(t *testing.T) {
	h, enc := newSessionFixture(t)

	user := &domain.User{ID: uuid.New(), Email: "shopper@example.com", Role: "customer"}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(domain.NewContextWithUser(req.Context(), user))
	rec := httptest.NewRecorder()

	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	c := sessionCookie(t, rec)
	if c == nil {
		t.Fatal("expected refreshed session cookie")
	}
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	session, err := auth.OpenSession(enc, c.Value)
	if err != nil {
		t.Fatalf("OpenSession on refreshed cookie: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("refreshed session user = %s, want %s", session.UserID, user.ID)
	}
	if session.Email != user.Email {
		t.Errorf("refreshed session email = %q, want %q", session.Email, user.Email)
	}
}

func TestMeRequiresUser(t *testing.T) {
	h, _ := newSessionFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()

	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h, _ := newSessionFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	c := sessionCookie(t, rec)
	if c == nil {
		t.Fatal("expected session cookie in response")
	}
	if c.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", c.MaxAge)
	}
}
