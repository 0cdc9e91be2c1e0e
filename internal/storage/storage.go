// Package storage archives uploaded candidate documents.
package storage

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// ResumeObject names a fresh object for a user's resume upload. Names never
// repeat, so a re-upload keeps the earlier document.
func ResumeObject(userID string) string {
	return path.Join("resumes", userID, uuid.NewString()+".pdf")
}
