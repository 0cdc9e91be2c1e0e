package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

type ChallengeHandler struct {
	svc services.ChallengeService
}

func NewChallengeHandler(svc services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{svc: svc}
}

type AddChallengeRequest struct {
	Language    string   `json:"language" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	StarterCode string   `json:"starter_code"`
	Difficulty  string   `json:"difficulty"`
	Tags        []string `json:"tags"`
}

func (h *ChallengeHandler) Add(c *gin.Context) {
	var req AddChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChallengeHandler.Add", "invalid request body", err))
		return
	}

	row, err := h.svc.Add(c.Request.Context(), models.Challenge{
		Title:       req.Title,
		Language:    req.Language,
		Description: req.Description,
		StarterCode: req.StarterCode,
		Difficulty:  req.Difficulty,
	}, req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *ChallengeHandler) List(c *gin.Context) {
	language := c.DefaultQuery("language", "python")
	difficulty := c.DefaultQuery("difficulty", services.DefaultDifficulty)

	rows, err := h.svc.Candidates(c.Request.Context(), language, difficulty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": language, "difficulty": difficulty, "challenges": rows})
}
