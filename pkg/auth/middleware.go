package auth

import (
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/substrate-hq/substrate/pkg/apperror"
	"github.com/substrate-hq/substrate/pkg/logger"
)

// Module provides the auth middleware.
var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

// Config holds the credential material the middleware verifies against.
type Config struct {
	// JWTSecret is the HMAC secret for bearer tokens. Tokens must carry the
	// actor id in the standard "sub" claim.
	JWTSecret string

	// APIKey enables static-key auth (X-API-Key header) for standalone
	// deployments. Empty disables it.
	APIKey string

	// APIKeyActorID is the actor identity assumed by API-key requests.
	APIKeyActorID uuid.UUID
}

// Middleware authenticates requests and attaches the Actor to the context.
type Middleware struct {
	cfg Config
	log *slog.Logger
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(cfg Config, log *slog.Logger) *Middleware {
	return &Middleware{
		cfg: cfg,
		log: log.With(logger.Scope("auth")),
	}
}

// RequireAuth rejects unauthenticated requests. On success the resolved Actor
// is available via GetActor.
func (m *Middleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := m.resolve(c)
			if err != nil {
				return err
			}
			SetActor(c, actor)
			return next(c)
		}
	}
}

func (m *Middleware) resolve(c echo.Context) (*Actor, error) {
	if key := c.Request().Header.Get("X-API-Key"); key != "" {
		if m.cfg.APIKey == "" || key != m.cfg.APIKey {
			return nil, apperror.ErrInvalidToken.WithMessage("invalid API key")
		}
		return &Actor{ID: m.cfg.APIKeyActorID, APIKey: true}, nil
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, apperror.ErrUnauthorized
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, apperror.ErrInvalidToken.WithMessage("expected Bearer token")
	}

	return m.verifyToken(raw)
}

func (m *Middleware) verifyToken(raw string) (*Actor, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		m.log.Debug("token verification failed", logger.Error(err))
		return nil, apperror.ErrInvalidToken.WithInternal(err)
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrInvalidToken.WithMessage("token subject is not an actor id")
	}

	return &Actor{ID: actorID}, nil
}

// IssueToken mints a bearer token for an actor. Used by operational tooling
// and tests; the store itself has no login flow.
func IssueToken(secret string, actorID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: actorID.String(),
	})
	return token.SignedString([]byte(secret))
}
