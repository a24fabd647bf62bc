package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/essay-evaluator-api/internal/utils"
)

// JWTProtected validates HMAC signed bearer tokens. An empty secret disables
// the check so local deployments can run without an identity provider.
func JWTProtected(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)

	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token")
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || strings.TrimSpace(subject) == "" {
			return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthorized", "token subject missing")
		}
		c.Locals("subject", strings.TrimSpace(subject))

		return c.Next()
	}
}

// SubjectFromContext returns the authenticated token subject, if any.
func SubjectFromContext(c *fiber.Ctx) string {
	if subject, ok := c.Locals("subject").(string); ok {
		return subject
	}
	return ""
}
