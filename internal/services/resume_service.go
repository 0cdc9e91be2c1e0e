package services

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/document"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/utils"
)

const MaxResumeBytes = 10 << 20

// ResumeUpload is a validated resume with its extracted text.
type ResumeUpload struct {
	FileName   string
	MimeType   string
	Size       int
	StoredPath string // empty when no bucket is configured
	Text       string
}

type ResumeService interface {
	Ingest(ctx context.Context, userID, fileName string, data []byte) (*ResumeUpload, error)
	Record(ctx context.Context, userID, sessionID string, up *ResumeUpload) error
}

type resumeService struct {
	extractor document.Extractor
	uploader  storage.Uploader            // optional
	repo      pgrepo.ResumeFileRepository // optional
}

func NewResumeService(extractor document.Extractor, uploader storage.Uploader, repo pgrepo.ResumeFileRepository) ResumeService {
	return &resumeService{extractor: extractor, uploader: uploader, repo: repo}
}

func (s *resumeService) Ingest(ctx context.Context, userID, fileName string, data []byte) (*ResumeUpload, error) {
	const op = "ResumeService.Ingest"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty file", nil)
	}
	if len(data) > MaxResumeBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil)
	}
	if !strings.EqualFold(path.Ext(fileName), ".pdf") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "only PDF files are accepted", nil)
	}
	mime := http.DetectContentType(data)
	if mime != "application/pdf" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file content is not a PDF", nil)
	}

	text, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "failed to read pdf", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "could not extract text from PDF", nil)
	}

	up := &ResumeUpload{FileName: path.Base(fileName), MimeType: mime, Size: len(data), Text: text}
	if s.uploader != nil {
		object := storage.ResumeObject(userID)
		stored, err := s.uploader.Upload(ctx, object, mime, bytes.NewReader(data))
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to archive resume", err)
		}
		up.StoredPath = stored
	}
	return up, nil
}

func (s *resumeService) Record(ctx context.Context, userID, sessionID string, up *ResumeUpload) error {
	const op = "ResumeService.Record"

	if s.repo == nil || up == nil {
		return nil
	}
	row := &models.ResumeFile{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		FileName:  up.FileName,
		FilePath:  up.StoredPath,
		FileSize:  up.Size,
		MimeType:  up.MimeType,
		TextChars: len([]rune(up.Text)),
		UploadAt:  time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist resume metadata", err)
	}
	return nil
}
