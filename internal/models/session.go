package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	StatusOngoing   SessionStatus = "ongoing"
	StatusCompleted SessionStatus = "completed"
)

// Mode selects the orchestrator flavour: the plain spoken interview or the
// variant that can issue and evaluate coding challenges.
type Mode string

const (
	ModeInterview     Mode = "interview"
	ModeCodeInterview Mode = "code_interview"
)

func (m Mode) Valid() bool { return m == ModeInterview || m == ModeCodeInterview }

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`       // jwt subject

	Mode       Mode          `bson:"mode" json:"mode"`
	Status     SessionStatus `bson:"status" json:"status"`
	ResumeText string        `bson:"resume_text,omitempty" json:"resume_text,omitempty"`

	Messages        []Message        `bson:"messages" json:"messages"`
	CodeSubmissions []CodeSubmission `bson:"code_submissions,omitempty" json:"code_submissions,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	StartedAt *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
}

func (s *Session) Completed() bool { return s.Status == StatusCompleted }
