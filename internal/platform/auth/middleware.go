package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/policy"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims carries the actor identity and affiliation inside the JWT.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	ClinicID   string `json:"clinic_id,omitempty"`
	Active     bool   `json:"active"`
}

// JWTConfig configures token verification. SigningKey enables HMAC
// verification for development and tests; production deployments set
// Issuer/Audience against an external identity provider.
type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// Middleware authenticates requests, builds the policy.Actor and places
// it on the request context. Inactive accounts are rejected before any
// operation runs.
func Middleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err := authenticate(c, cfg); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalMiddleware authenticates a request that carries a token but
// lets anonymous requests through without an actor. Registration
// endpoints use it: the public can register, while a super admin's
// token still grants the elevated creation path.
func OptionalMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return next(c)
			}
			if err := authenticate(c, cfg); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, cfg JWTConfig) error {
	parts := strings.SplitN(c.Request().Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	actor, err := actorFromClaims(claims)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	if !actor.Active {
		return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
	}

	ctx := context.WithValue(c.Request().Context(), actorKey, actor)
	c.SetRequest(c.Request().WithContext(ctx))
	return nil
}

func actorFromClaims(claims *Claims) (policy.Actor, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return policy.Actor{}, err
	}
	actor := policy.Actor{
		ID:     id,
		Role:   policy.Role(claims.Role),
		Active: claims.Active,
	}
	if claims.HospitalID != "" {
		hid, err := uuid.Parse(claims.HospitalID)
		if err != nil {
			return policy.Actor{}, err
		}
		actor.HospitalID = &hid
	}
	if claims.ClinicID != "" {
		cid, err := uuid.Parse(claims.ClinicID)
		if err != nil {
			return policy.Actor{}, err
		}
		actor.ClinicID = &cid
	}
	return actor, nil
}

// DevMiddleware grants unauthenticated requests a super-admin actor.
// Development mode only.
func DevMiddleware() echo.MiddlewareFunc {
	devID := uuid.New()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := policy.Actor{ID: devID, Role: policy.RoleSuperAdmin, Active: true}
			ctx := context.WithValue(c.Request().Context(), actorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithActor returns a context carrying the actor; used by tests and the
// dev middleware.
func WithActor(ctx context.Context, actor policy.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (policy.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(policy.Actor)
	return actor, ok
}
