package middleware

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/common"
	"storefront/internal/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const tokenContextKey = "user"

// JWTOptions selects how tokens are verified. HS256 tokens are always
// checked against Secret, any other algorithm is handed to KeyFunc.
type JWTOptions struct {
	Secret  string
	KeyFunc jwt.Keyfunc
}

// NewJWKS fetches and periodically refreshes a remote JSON Web Key Set
func NewJWKS(ctx context.Context, url string, log *zap.Logger) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("jwks refresh failed", zap.String("url", url), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks from %s: %w", url, err)
	}
	return jwks, nil
}

// JWTAuth verifies the bearer token and stores the caller's id and role on
// the request context.
func JWTAuth(opts JWTOptions) echo.MiddlewareFunc {
	cfg := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(models.TokenClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c, "Invalid or missing token")
		},
	}
	if opts.KeyFunc != nil {
		cfg.KeyFunc = opts.keyFunc()
	} else {
		cfg.SigningKey = []byte(opts.Secret)
		cfg.SigningMethod = echojwt.AlgorithmHS256
	}

	verify := echojwt.WithConfig(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(claimsToContext(next))
	}
}

// keyFunc keeps tokens issued by this service valid while a JWKS is in use.
func (o JWTOptions) keyFunc() jwt.Keyfunc {
	secret := []byte(o.Secret)
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if token.Method.Alg() != echojwt.AlgorithmHS256 || len(secret) == 0 {
				return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
			}
			return secret, nil
		}
		return o.KeyFunc(token)
	}
}

func claimsToContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return common.SendUnauthorizedError(c, "Invalid or missing token")
		}
		claims, ok := token.Claims.(*models.TokenClaims)
		if !ok {
			return common.SendUnauthorizedError(c, "Invalid token claims")
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return common.SendUnauthorizedError(c, "Invalid user_id in token")
		}

		ctx := context.WithValue(c.Request().Context(), common.UserIDKey, userID)
		ctx = context.WithValue(ctx, common.RoleKey, claims.Role)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}
