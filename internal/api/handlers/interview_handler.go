package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

type InterviewHandler struct {
	interviews services.InterviewService
	resumes    services.ResumeService
}

func NewInterviewHandler(interviews services.InterviewService, resumes services.ResumeService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews, resumes: resumes}
}

type StartInterviewResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Start creates a spoken interview session.
func (h *InterviewHandler) Start(c *gin.Context) { h.start(c, models.ModeInterview) }

// CodeStart creates a session that can issue coding challenges.
func (h *InterviewHandler) CodeStart(c *gin.Context) { h.start(c, models.ModeCodeInterview) }

func (h *InterviewHandler) start(c *gin.Context, mode models.Mode) {
	const op = "InterviewHandler.Start"

	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var upload *services.ResumeUpload
	if fh, err := c.FormFile("pdf"); err == nil {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "only .pdf is allowed", nil))
			return
		}
		if fh.Size <= 0 || fh.Size > services.MaxResumeBytes {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, services.MaxResumeBytes+1))
		f.Close()
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read upload", err))
			return
		}
		if upload, err = h.resumes.Ingest(ctx, userID, fh.Filename, data); err != nil {
			writeError(c, err)
			return
		}
	}

	resumeText := ""
	if upload != nil {
		resumeText = upload.Text
	}
	sess, err := h.interviews.Start(ctx, userID, mode, resumeText)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.resumes.Record(ctx, userID, sess.SessionID, upload); err != nil {
		// the session is usable without the metadata row
		middleware.Log(c).WithError(err).WithField("session_id", sess.SessionID).Warn("record resume upload")
	}

	c.JSON(http.StatusOK, StartInterviewResponse{
		SessionID: sess.SessionID,
		Message:   "Interview session initialized successfully.",
	})
}

func (h *InterviewHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	sess, err := h.interviews.Get(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
