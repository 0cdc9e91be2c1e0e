package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// writeError answers with the AppError's code and message. Anything else is
// reported as an internal error without leaking its text.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		middleware.Log(c).WithError(err).Error("request failed")
	}

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{Code: ae.Code, Message: ae.Message})
		return
	}
	c.JSON(status, APIError{Code: utils.CodeInternal, Message: http.StatusText(status)})
}

// currentUser returns the subject set by the JWT middleware.
func currentUser(c *gin.Context) (string, bool) {
	if id := c.GetString("user_id"); id != "" {
		return id, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

func sessionParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("session_id"))
	if id == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "Handler", "session_id is required", nil))
		return "", false
	}
	return id, true
}
