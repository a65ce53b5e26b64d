package storefront

import (
	"log/slog"
	"net/http"

	"github.com/tranvu/mercato/internal/auth"
	"github.com/tranvu/mercato/internal/cookie"
	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/domain"
	"github.com/tranvu/mercato/internal/handler"
)

// SessionHandler serves the session endpoints. Sessions are issued by the
// identity provider; this handler only reads, refreshes, and clears them.
type SessionHandler struct {
	encryptor crypto.Encryptor
	cookies   *cookie.Config
	logger    *slog.Logger
}

func NewSessionHandler(encryptor crypto.Encryptor, cookies *cookie.Config, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{encryptor: encryptor, cookies: cookies, logger: logger}
}

type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Me returns the authenticated caller and re-seals the session cookie with a
// fresh TTL so active sessions slide instead of expiring mid-use.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := domain.RequireUser(r.Context())
	if err != nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	token, err := auth.SealSession(h.encryptor, user, auth.DefaultSessionTTL)
	if err != nil {
		// Keep serving the identity; the old cookie stays valid until it expires.
		h.logger.Warn("session refresh failed", slog.String("error", err.Error()))
	} else {
		h.cookies.SetSession(w, cookie.SessionCookieName, token, int(auth.DefaultSessionTTL.Seconds()))
	}

	handler.RespondJSON(w, http.StatusOK, map[string]userView{
		"user": {ID: user.ID.String(), Email: user.Email, Role: user.Role},
	})
}

// Logout clears the session cookie. Safe to call without a session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w, cookie.SessionCookieName)
	handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
