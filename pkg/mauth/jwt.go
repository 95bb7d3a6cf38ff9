// Package mauth verifies bearer tokens against one of two OIDC issuers (the
// regular user issuer and a guest issuer, per spec §6) and exposes the
// resulting claims/scopes to fiber handlers via context locals.
package mauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/pkg"
	"github.com/kestrelhq/nlsql/pkg/constant"
)

// Config configures the two recognized issuers.
type Config struct {
	UserIssuer  string
	GuestIssuer string
	Audience    string
	Algorithms  []string
}

// Claims is the subset of OIDC claims the service relies on.
type Claims struct {
	Subject string   `json:"sub"`
	Scopes  []string `json:"scope"`
	IsGuest bool      `json:"-"`
}

// HasScope reports whether the claim set grants the given scope, or "admin"
// which implicitly grants every scope (mirrors the teacher's permission
// enforcement for /admin/* routes, §6).
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == "admin" {
			return true
		}
	}

	return false
}

// Verifier verifies bearer tokens against either configured issuer.
type Verifier struct {
	userVerifier  *oidc.IDTokenVerifier
	guestVerifier *oidc.IDTokenVerifier
}

// NewVerifier discovers both issuers' JWKS via OIDC discovery.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	v := &Verifier{}

	userProvider, err := oidc.NewProvider(ctx, cfg.UserIssuer)
	if err != nil {
		return nil, fmt.Errorf("discovering user issuer: %w", err)
	}

	v.userVerifier = userProvider.Verifier(&oidc.Config{ClientID: cfg.Audience, SupportedSigningAlgs: cfg.Algorithms})

	if cfg.GuestIssuer != "" {
		guestProvider, err := oidc.NewProvider(ctx, cfg.GuestIssuer)
		if err != nil {
			return nil, fmt.Errorf("discovering guest issuer: %w", err)
		}

		v.guestVerifier = guestProvider.Verifier(&oidc.Config{ClientID: cfg.Audience, SupportedSigningAlgs: cfg.Algorithms})
	}

	return v, nil
}

// Verify tries the user issuer then, if configured and the first attempt
// fails, the guest issuer.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	idToken, err := v.userVerifier.Verify(ctx, rawToken)
	isGuest := false

	if err != nil && v.guestVerifier != nil {
		idToken, err = v.guestVerifier.Verify(ctx, rawToken)
		isGuest = true
	}

	if err != nil {
		return Claims{}, constant.ErrInvalidToken
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return Claims{}, constant.ErrInvalidToken
	}

	claims.IsGuest = isGuest

	return claims, nil
}

const claimsLocalsKey = "auth_claims"

// Middleware rejects requests with no/invalid bearer token and stores the
// resulting Claims in fiber.Locals for downstream handlers.
func (v *Verifier) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return writeAuthError(c, pkg.UnauthorizedError{
				Code:    constant.ErrTokenMissing.Error(),
				Title:   "Unauthorized",
				Message: "A bearer token is required.",
			})
		}

		raw := strings.TrimPrefix(header, "Bearer ")

		claims, err := v.Verify(c.UserContext(), raw)
		if err != nil {
			return writeAuthError(c, pkg.UnauthorizedError{
				Code:    constant.ErrInvalidToken.Error(),
				Title:   "Unauthorized",
				Message: "The bearer token could not be verified.",
			})
		}

		c.Locals(claimsLocalsKey, claims)

		return c.Next()
	}
}

// RequireScope rejects the request unless the verified claims grant scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := c.Locals(claimsLocalsKey).(Claims)
		if !claims.HasScope(scope) {
			return writeAuthError(c, pkg.ForbiddenError{
				Code:    constant.ErrMissingScope.Error(),
				Title:   "Forbidden",
				Message: fmt.Sprintf("scope %q is required for this operation", scope),
			})
		}

		return c.Next()
	}
}

// ClaimsFromCtx retrieves the verified claims stored by Middleware.
func ClaimsFromCtx(c *fiber.Ctx) Claims {
	claims, _ := c.Locals(claimsLocalsKey).(Claims)
	return claims
}

func writeAuthError(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	if _, ok := err.(pkg.ForbiddenError); ok {
		status = fiber.StatusForbidden
	}

	return c.Status(status).JSON(fiber.Map{"message": err.Error()})
}
