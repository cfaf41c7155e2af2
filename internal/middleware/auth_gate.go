package middleware

import (
	"context"
	"errors"
	"strings"

	"boilerplate/internal/infra/cache"
	"boilerplate/internal/logging"
	"boilerplate/internal/token"

	"github.com/labstack/echo/v4"
)

// token.Issuerが満たす
type AccessVerifier interface {
	VerifyAccess(raw string) (token.Identity, error)
}

// cache.SessionCacheが満たす
type SessionLookup interface {
	Lookup(ctx context.Context, userID string, typ token.Type) (string, error)
}

// AuthGateはBearerトークンを署名とキャッシュの両方で確かめる。
// キャッシュの値と完全一致しなければ401（ログアウト・ローテーション直後から効く）。
// キャッシュ自体が落ちている時は署名だけで通す。
func AuthGate(verifier AccessVerifier, sessions SessionLookup, log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			//Bearer形式か確認してtokenを抜く
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(authz, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				return ErrUnauthorized
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				return ErrUnauthorized
			}

			id, err := verifier.VerifyAccess(raw)
			if err != nil {
				if errors.Is(err, token.ErrMissingSecret) {
					return err
				}
				return ErrUnauthorized
			}

			cached, err := sessions.Lookup(ctx, id.ID, token.TypeAccess)
			switch {
			case errors.Is(err, cache.ErrUnavailable):
				log.Warn(ctx, "session cache unavailable, accepting token on signature only", "user_id", id.ID)
			case err != nil:
				return err
			case cached != raw:
				return ErrUnauthorized
			}

			c.Set(CtxUserIDKey, id.ID)
			c.Set(CtxUserEmailKey, id.Email)
			c.Set(CtxUserRoleKey, id.Role)
			return next(c)
		}
	}
}
