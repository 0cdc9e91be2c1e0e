package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/yoointerview/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type claims struct {
	jwt.RegisteredClaims
	Role        string         `json:"role"`
	AppMetadata map[string]any `json:"app_metadata"` // {"role":"admin"} grants admin routes
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Role   string
}

// JWTVerifier checks HS256 tokens. Issuer and Audience are only enforced
// when set.
type JWTVerifier struct {
	Secret   string
	Issuer   string
	Audience string
}

var (
	errInvalidToken = errors.New("invalid token")
	errNoSubject    = errors.New("missing subject")
)

func (v *JWTVerifier) Verify(raw string) (Identity, error) {
	const op = "JWTVerifier.Verify"

	if v.Secret == "" {
		return Identity{}, utils.E(utils.CodeInternal, op, "JWT_SECRET is not set", nil)
	}
	if raw == "" {
		return Identity{}, utils.E(utils.CodeUnauthorized, op, "missing token", nil)
	}

	cl := &claims{}
	tok, err := jwt.ParseWithClaims(raw, cl, func(t *jwt.Token) (any, error) {
		return []byte(v.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || tok == nil || !tok.Valid {
		if err == nil {
			err = errInvalidToken
		}
		return Identity{}, utils.E(utils.CodeUnauthorized, op, "invalid token", err)
	}

	if v.Issuer != "" && cl.Issuer != v.Issuer {
		return Identity{}, utils.E(utils.CodeUnauthorized, op, "invalid token issuer", nil)
	}
	if v.Audience != "" && !slices.Contains(cl.Audience, v.Audience) {
		return Identity{}, utils.E(utils.CodeUnauthorized, op, "invalid token audience", nil)
	}
	if cl.Subject == "" {
		return Identity{}, utils.E(utils.CodeUnauthorized, op, "missing subject", errNoSubject)
	}

	role := "user"
	if r, ok := cl.AppMetadata["role"].(string); ok && r != "" {
		role = r
	}
	return Identity{UserID: cl.Subject, Role: role}, nil
}

// Authenticate resolves a websocket path token to its user id.
func (v *JWTVerifier) Authenticate(token string) (string, error) {
	id, err := v.Verify(token)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// Middleware guards REST routes with a bearer token.
func (v *JWTVerifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			abortWith(c, utils.E(utils.CodeUnauthorized, "JWTVerifier.Middleware", "missing bearer token", nil))
			return
		}

		id, err := v.Verify(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set("user_id", id.UserID)
		c.Set("role", id.Role)
		c.Next()
	}
}
