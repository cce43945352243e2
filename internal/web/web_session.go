package web

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/go-while/go-homepage/internal/config"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionKeyInfo = "go-homepage session signing v1"
	sessionMaxAge  = 7 * 24 * 3600 // 7 days
)

// deriveSessionKey stretches the configured secret into a 32 byte HMAC key.
func deriveSessionKey(secret string) ([]byte, error) {
	if len(secret) < config.MinSessionSecretLen {
		return nil, config.ErrShortSessionSecret
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// SessionMiddleware attaches a signed, unencrypted cookie session to every
// request. Handlers never read or write it; the cookie is only re-issued
// when something saves the session.
func SessionMiddleware(webconfig *config.WebConfig) (gin.HandlerFunc, error) {
	key, err := deriveSessionKey(webconfig.SessionSecret)
	if err != nil {
		return nil, err
	}

	// Only an authentication key: the cookie is tamper evident, not private.
	store := cookie.NewStore(key)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   webconfig.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	name := webconfig.SessionCookieName
	if name == "" {
		name = config.DefaultSessionCookieName
	}
	return sessions.Sessions(name, store), nil
}
