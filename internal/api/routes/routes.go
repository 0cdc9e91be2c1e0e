package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
)

type Deps struct {
	Auth         *middleware.JWTVerifier
	Interview    *handlers.InterviewHandler
	Conversation *handlers.ConversationHandler // nil without Postgres
	Challenge    *handlers.ChallengeHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// WebSocket: the token travels in the path and is checked by the session
	r.GET("/interview/:session_id/message/:token", d.WS.Interview)
	r.GET("/code_interview/:session_id/message/:token", d.WS.CodeInterview)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(d.Auth.Middleware())

	auth.POST("/interview/start", d.Interview.Start)
	auth.POST("/interview/code_start", d.Interview.CodeStart)
	auth.GET("/interview/:session_id", d.Interview.Get)

	auth.GET("/challenges", d.Challenge.List)

	if d.Conversation != nil {
		auth.GET("/conversation/:session_id", d.Conversation.ListBySession)
	}

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/challenges", d.Challenge.Add)
}
