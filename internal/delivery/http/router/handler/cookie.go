package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"athfed/config"
	"athfed/internal/delivery/http/middleware"
	"athfed/internal/usecase"
)

// RefreshTokenCookie is the cookie carrying the refresh token for
// cookie-based clients.
const RefreshTokenCookie = "refresh_token"

// setTokenCookies mirrors the token pair into HTTP-only cookies so
// browser clients need not store tokens in script-reachable storage.
func setTokenCookies(c echo.Context, cfg *config.Config, tokens *usecase.TokenPair) {
	c.SetCookie(tokenCookie(cfg, middleware.AccessTokenCookie, tokens.AccessToken,
		time.Duration(tokens.ExpiresInSeconds)*time.Second))
	c.SetCookie(tokenCookie(cfg, RefreshTokenCookie, tokens.RefreshToken, cfg.Auth.RefreshTTL))
}

// clearTokenCookies expires both token cookies.
func clearTokenCookies(c echo.Context, cfg *config.Config) {
	c.SetCookie(tokenCookie(cfg, middleware.AccessTokenCookie, "", -time.Hour))
	c.SetCookie(tokenCookie(cfg, RefreshTokenCookie, "", -time.Hour))
}

func tokenCookie(cfg *config.Config, name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
