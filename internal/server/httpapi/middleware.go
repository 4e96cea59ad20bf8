package httpapi

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/spaceshare/internal/common"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localsUserID = "user_id"

// optionalAuth extracts the acting user from a Bearer token when one is
// present. Requests without a token stay anonymous (onboarding uploads); a
// malformed token is still rejected.
func optionalAuth(secretKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Next()
		}
		userID, err := verifyToken(auth, secretKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localsUserID, userID)
		return c.Next()
	}
}

// requireAuth insists on a valid Bearer token.
func requireAuth(secretKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		userID, err := verifyToken(auth, secretKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localsUserID, userID)
		return c.Next()
	}
}

// verifyToken parses an HS256 JWT from an Authorization header value and
// returns its subject.
func verifyToken(header, secretKey string) (string, error) {
	raw := header
	if strings.HasPrefix(raw, "Bearer ") {
		raw = strings.TrimPrefix(raw, "Bearer ")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method", common.ErrInvalidToken)
		}
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

// actingUser returns the authenticated user ID, or nil for anonymous
// requests.
func actingUser(c *fiber.Ctx) *string {
	if v, ok := c.Locals(localsUserID).(string); ok && v != "" {
		return &v
	}
	return nil
}
