package interview

import (
	"encoding/json"
	"fmt"
)

// ClientEvent is the closed set of messages a client may send.
type ClientEvent interface{ clientEvent() }

type (
	UserAudio struct {
		Audio string `json:"audio"` // base64, optionally a data URI
	}
	StartSpeechStream struct{}
	AudioChunk        struct {
		Audio string `json:"audio"`
	}
	EndSpeechStream struct{}
	UserIdle        struct{}
	TTSRequest      struct {
		Sentence string `json:"sentence"`
		Index    int    `json:"index"`
	}
	CodeExecution struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	CodeSubmission struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	EndSession struct{}
)

func (UserAudio) clientEvent()         {}
func (StartSpeechStream) clientEvent() {}
func (AudioChunk) clientEvent()        {}
func (EndSpeechStream) clientEvent()   {}
func (UserIdle) clientEvent()          {}
func (TTSRequest) clientEvent()        {}
func (CodeExecution) clientEvent()     {}
func (CodeSubmission) clientEvent()    {}
func (EndSession) clientEvent()        {}

// UnknownTypeError is returned for a well-formed message with a tag outside
// the protocol.
type UnknownTypeError struct{ Type string }

func (e *UnknownTypeError) Error() string { return fmt.Sprintf("unknown message type %q", e.Type) }

// DecodeClientEvent parses one inbound frame.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	var ev ClientEvent
	switch head.Type {
	case "user_audio":
		ev = &UserAudio{}
	case "start_speech_stream":
		return StartSpeechStream{}, nil
	case "audio_chunk":
		ev = &AudioChunk{}
	case "end_speech_stream":
		return EndSpeechStream{}, nil
	case "user_idle":
		return UserIdle{}, nil
	case "tts_request":
		ev = &TTSRequest{}
	case "code_execution":
		ev = &CodeExecution{Language: "python"}
	case "code_submission":
		ev = &CodeSubmission{Language: "python"}
	case "end_session":
		return EndSession{}, nil
	case "":
		return nil, fmt.Errorf("missing message type")
	default:
		return nil, &UnknownTypeError{Type: head.Type}
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", head.Type, err)
	}
	return deref(ev), nil
}

func deref(ev ClientEvent) ClientEvent {
	switch e := ev.(type) {
	case *UserAudio:
		return *e
	case *AudioChunk:
		return *e
	case *TTSRequest:
		return *e
	case *CodeExecution:
		return *e
	case *CodeSubmission:
		return *e
	}
	return ev
}

// ServerEvent is the closed set of messages the server sends. Each carries
// its own wire tag in Type.
type ServerEvent interface{ serverEvent() }

type TimerUpdate struct {
	Type             string `json:"type"`
	RemainingSeconds int    `json:"remaining_seconds"`
	TotalSeconds     int    `json:"total_seconds,omitempty"`
}

type TimerWarning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Transcription struct {
	Type     string `json:"type"`
	UserText string `json:"user_text"`
}

type PartialTranscription struct {
	Type     string `json:"type"`
	UserText string `json:"user_text"`
}

type LLMToken struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type LLMEnd struct {
	Type string `json:"type"`
}

type Cancelled struct {
	Type string `json:"type"`
}

type CodeChallenge struct {
	Type             string `json:"type"`
	Language         string `json:"language"`
	Title            string `json:"title"`
	ProblemStatement string `json:"problem_statement"`
	StarterCode      string `json:"starter_code"`
}

type CodeOutput struct {
	Type    string `json:"type"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

type CodeFeedback struct {
	Type     string `json:"type"`
	Feedback string `json:"feedback"`
}

type TTSAudioChunk struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // data URI
	Index int    `json:"index"`
}

type SessionComplete struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (TimerUpdate) serverEvent()          {}
func (TimerWarning) serverEvent()         {}
func (Transcription) serverEvent()        {}
func (PartialTranscription) serverEvent() {}
func (LLMToken) serverEvent()             {}
func (LLMEnd) serverEvent()               {}
func (Cancelled) serverEvent()            {}
func (CodeChallenge) serverEvent()        {}
func (CodeOutput) serverEvent()           {}
func (CodeFeedback) serverEvent()         {}
func (TTSAudioChunk) serverEvent()        {}
func (SessionComplete) serverEvent()      {}
func (ErrorEvent) serverEvent()           {}

func timerUpdate(remaining, total int) TimerUpdate {
	return TimerUpdate{Type: "timer_update", RemainingSeconds: remaining, TotalSeconds: total}
}
func timerWarning(msg string) TimerWarning { return TimerWarning{Type: "timer_warning", Message: msg} }
func transcription(text string) Transcription {
	return Transcription{Type: "transcription", UserText: text}
}
func partialTranscription(text string) PartialTranscription {
	return PartialTranscription{Type: "partial_transcription", UserText: text}
}
func llmToken(tok string) LLMToken { return LLMToken{Type: "llm_token", Token: tok} }
func llmEnd() LLMEnd               { return LLMEnd{Type: "llm_end"} }
func cancelled() Cancelled         { return Cancelled{Type: "cancelled"} }
func codeOutput(out string, ok bool) CodeOutput {
	return CodeOutput{Type: "code_output", Output: out, Success: ok}
}
func codeFeedback(fb string) CodeFeedback { return CodeFeedback{Type: "code_feedback", Feedback: fb} }
func ttsAudioChunk(audio string, idx int) TTSAudioChunk {
	return TTSAudioChunk{Type: "tts_audio_chunk", Audio: audio, Index: idx}
}
func sessionComplete(msg string) SessionComplete {
	return SessionComplete{Type: "session_complete", Message: msg}
}
func errorEvent(msg string) ErrorEvent { return ErrorEvent{Type: "error", Message: msg} }
