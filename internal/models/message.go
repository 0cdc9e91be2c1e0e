package models

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// VoiceData is the prosody annotation a client may attach to a user turn.
type VoiceData struct {
	AvgPitch   float64 `bson:"avg_pitch" json:"avg_pitch"`
	PitchStd   float64 `bson:"pitch_std" json:"pitch_std"`
	Energy     float64 `bson:"energy" json:"energy"`
	SpeechRate float64 `bson:"speech_rate" json:"speech_rate"`
	Confidence float64 `bson:"confidence" json:"confidence"`
}

// EmotionData is the facial sentiment annotation.
type EmotionData struct {
	Neutral   float64 `bson:"neutral" json:"neutral"`
	Happy     float64 `bson:"happy" json:"happy"`
	Sad       float64 `bson:"sad" json:"sad"`
	Angry     float64 `bson:"angry" json:"angry"`
	Fearful   float64 `bson:"fearful" json:"fearful"`
	Disgusted float64 `bson:"disgusted" json:"disgusted"`
	Surprised float64 `bson:"surprised" json:"surprised"`
}

type Message struct {
	Role      Role         `bson:"role" json:"role"`
	Content   string       `bson:"content" json:"content"`
	FaceData  *EmotionData `bson:"face_data,omitempty" json:"face_data,omitempty"`
	VoiceData *VoiceData   `bson:"voice_data,omitempty" json:"voice_data,omitempty"`
	Timestamp time.Time    `bson:"timestamp" json:"timestamp"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{Role: role, Content: content, Timestamp: at.UTC()}
}
