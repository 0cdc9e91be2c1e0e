package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/utils"
)

// RequireRole admits requests whose verified role is one of allowed. It runs
// after Middleware, which sets "role".
func RequireRole(allowed ...string) gin.HandlerFunc {
	allow := make([]string, 0, len(allowed))
	for _, a := range allowed {
		allow = append(allow, strings.ToLower(strings.TrimSpace(a)))
	}

	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetString("role")))
		if role == "" || !slices.Contains(allow, role) {
			abortWith(c, utils.E(utils.CodeForbidden, "RequireRole", "forbidden", nil))
			return
		}
		c.Next()
	}
}

// RequireAdmin guards the challenge catalog administration routes.
func RequireAdmin() gin.HandlerFunc { return RequireRole("admin") }

func abortWith(c *gin.Context, err error) {
	msg := "forbidden"
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{Code: utils.CodeOf(err), Message: msg})
}
