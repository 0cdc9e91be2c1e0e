package interview

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/tts"
)

func (s *Session) dispatch(ctx context.Context, data []byte) {
	ev, err := DecodeClientEvent(data)
	if err != nil {
		var unknown *UnknownTypeError
		if errors.As(err, &unknown) {
			s.out.send(errorEvent("Unknown message type: " + unknown.Type))
			return
		}
		s.log.WithError(err).Debug("malformed client message")
		s.out.send(errorEvent("Invalid message."))
		return
	}

	switch e := ev.(type) {
	case StartSpeechStream:
		s.onStartSpeechStream(ctx)
	case AudioChunk:
		s.onAudioChunk(e)
	case EndSpeechStream:
		s.onEndSpeechStream()
	case UserAudio:
		s.onUserAudio(ctx, e)
	case UserIdle:
		s.onUserIdle(ctx)
	case TTSRequest:
		s.onTTSRequest(ctx, e)
	case CodeExecution:
		s.onCodeExecution(ctx, e)
	case CodeSubmission:
		s.onCodeSubmission(ctx, e)
	case EndSession:
		s.complete(ctx, reasonEndedByUser)
	default:
		s.log.Errorf("unhandled client event %T", ev)
	}
}

func (s *Session) requireSpeech(mode SpeechMode) bool {
	if s.opts.SpeechMode == mode {
		return true
	}
	if mode == SpeechStreaming {
		s.out.send(errorEvent("Streaming speech is not enabled for this session."))
	} else {
		s.out.send(errorEvent("Single-shot speech is not enabled for this session."))
	}
	return false
}

func (s *Session) requireCodeMode() bool {
	if s.opts.Mode == models.ModeCodeInterview {
		return true
	}
	s.out.send(errorEvent("Coding messages are only available in coding interviews."))
	return false
}

func (s *Session) onStartSpeechStream(ctx context.Context) {
	if !s.requireSpeech(SpeechStreaming) {
		return
	}
	s.idleCount = 0
	s.stopStream()

	q := newFragmentQueue()
	stt, lang := s.deps.STT, s.opts.Language
	s.streamQ = q
	s.stream = s.spawn(ctx, func(ctx context.Context, id uint64) {
		runSpeechStream(ctx, id, q, stt, lang, s.post)
	})
}

func (s *Session) stopStream() {
	if s.stream == nil {
		return
	}
	s.stream.stop()
	s.stream, s.streamQ = nil, nil
}

func (s *Session) onAudioChunk(e AudioChunk) {
	if !s.requireSpeech(SpeechStreaming) {
		return
	}
	if s.streamQ == nil {
		s.out.send(errorEvent("No active speech stream."))
		return
	}
	b, err := decodeAudio(e.Audio)
	if err != nil {
		s.out.send(errorEvent("Invalid audio data."))
		return
	}
	s.streamQ.push(b)
}

func (s *Session) onEndSpeechStream() {
	if !s.requireSpeech(SpeechStreaming) {
		return
	}
	if s.streamQ != nil {
		s.streamQ.close()
	}
}

func (s *Session) onUserAudio(ctx context.Context, e UserAudio) {
	if !s.requireSpeech(SpeechSingleShot) {
		return
	}
	s.idleCount = 0
	s.cancelGeneration()

	audio, err := decodeAudio(e.Audio)
	if err != nil {
		s.out.send(errorEvent("Invalid audio data."))
		return
	}
	stt, lang := s.deps.STT, s.opts.Language
	s.enqueueJob(ctx, func(jctx context.Context) func() {
		text, conf, err := stt.Transcribe(jctx, audio, lang)
		return func() {
			if err != nil {
				s.log.WithError(err).Error("transcription failed")
				s.out.send(errorEvent("Error during transcription."))
				return
			}
			if text = strings.TrimSpace(text); text != "" {
				s.handleUserText(ctx, text, conf)
			}
		}
	})
}

// handleUserText takes a finalized utterance into the transcript and
// answers it. confidence is the recognizer's score; zero means unknown.
func (s *Session) handleUserText(ctx context.Context, text string, confidence float64) {
	s.cancelGeneration()
	s.out.send(transcription(text))
	msg := models.NewMessage(models.RoleUser, text, s.now())
	if confidence > 0 {
		msg.VoiceData = &models.VoiceData{Confidence: confidence}
	}
	s.transcript = append(s.transcript, msg)

	if s.opts.Mode == models.ModeCodeInterview && wantsChallenge(text) {
		s.issueChallenge(ctx)
		return
	}
	s.startGeneration(ctx, s.history())
}

func (s *Session) onUserIdle(ctx context.Context) {
	s.idleCount++
	s.cancelGeneration()

	// the nudge goes to the model only; the transcript never sees it
	history := append(s.history(), models.NewMessage(models.RoleUser, IdleNudge(s.idleCount), s.now()))
	s.log.WithField("idle_count", s.idleCount).Info("nudging idle user")
	s.startGeneration(ctx, history)
}

func (s *Session) history() []models.Message {
	return append(make([]models.Message, 0, len(s.transcript)+1), s.transcript...)
}

func (s *Session) startGeneration(ctx context.Context, history []models.Message) {
	s.cancelGeneration()
	s.genBuf.Reset()
	llm, system := s.deps.LLM, s.systemPrompt
	s.gen = s.spawn(ctx, func(ctx context.Context, id uint64) {
		runGeneration(ctx, id, llm, system, history, s.post)
	})
}

// cancelGeneration stops the active generation, if any, and acknowledges
// it to the client. The partial reply is discarded.
func (s *Session) cancelGeneration() {
	if s.gen == nil {
		return
	}
	s.gen.stop()
	s.gen = nil
	s.genBuf.Reset()
	s.log.Info("generation interrupted")
	s.out.send(cancelled())
}

func (s *Session) onTTSRequest(ctx context.Context, e TTSRequest) {
	if s.deps.TTS == nil {
		s.out.send(errorEvent("Speech synthesis is not available."))
		return
	}
	s.speak(ctx, e.Sentence, e.Index, true)
}

// speak synthesizes text and sends it as a data URI. Text that is empty
// once cleaned produces nothing.
func (s *Session) speak(ctx context.Context, text string, index int, reportErr bool) {
	if s.deps.TTS == nil {
		return
	}
	clean := tts.CleanText(text)
	if clean == "" {
		return
	}
	synth := s.deps.TTS
	s.enqueueJob(ctx, func(jctx context.Context) func() {
		audio, err := synth.Synthesize(jctx, clean)
		return func() {
			if err != nil {
				s.log.WithError(err).Error("speech synthesis failed")
				if reportErr {
					s.out.send(errorEvent("Speech synthesis failed."))
				}
				return
			}
			s.out.send(ttsAudioChunk("data:audio/wav;base64,"+base64.StdEncoding.EncodeToString(audio), index))
		}
	})
}

func (s *Session) issueChallenge(ctx context.Context) {
	src, lang := s.deps.Challenges, s.opts.ChallengeLanguage
	s.enqueueJob(ctx, func(jctx context.Context) func() {
		ch, err := src.Pick(jctx, lang)
		return func() {
			if err != nil || ch == nil {
				s.log.WithError(err).WithField("language", lang).Warn("no challenge available")
				s.out.send(errorEvent("No coding challenge is available right now."))
				return
			}
			s.challenge = ch
			s.out.send(CodeChallenge{
				Type:             "code_challenge",
				Language:         ch.Language,
				Title:            ch.Title,
				ProblemStatement: ch.Description,
				StarterCode:      ch.StarterCode,
			})
			announcement := challengeAnnouncement(ch)
			s.transcript = append(s.transcript, models.NewMessage(models.RoleAssistant, announcement, s.now()))
			s.speak(ctx, announcement, 0, false)
		}
	})
}

func (s *Session) onCodeExecution(ctx context.Context, e CodeExecution) {
	if !s.requireCodeMode() {
		return
	}
	if strings.TrimSpace(e.Code) == "" {
		s.out.send(codeOutput("Error: No code provided", false))
		return
	}
	s.log.WithField("language", e.Language).Info("executing code")
	exec := s.deps.Sandbox
	s.enqueueJob(ctx, func(jctx context.Context) func() {
		res := exec.Execute(jctx, e.Language, e.Code)
		return func() { s.out.send(codeOutput(res.Output, res.Success)) }
	})
}

func (s *Session) onCodeSubmission(ctx context.Context, e CodeSubmission) {
	if !s.requireCodeMode() {
		return
	}
	var active *models.Challenge
	if s.challenge != nil {
		c := *s.challenge
		active = &c
	}
	s.submissions = append(s.submissions, models.CodeSubmission{
		Language:  e.Language,
		Code:      e.Code,
		Timestamp: s.now(),
		Challenge: active,
	})

	if active == nil {
		s.deliverFeedback(ctx, noChallengeFeedback)
		return
	}
	eval := s.deps.Evaluator
	s.enqueueJob(ctx, func(jctx context.Context) func() {
		fb := eval.Evaluate(jctx, active, e.Language, e.Code)
		return func() { s.deliverFeedback(ctx, fb) }
	})
}

func (s *Session) deliverFeedback(ctx context.Context, feedback string) {
	s.out.send(codeFeedback(feedback))
	s.transcript = append(s.transcript, models.NewMessage(models.RoleAssistant, feedback, s.now()))
	s.speak(ctx, feedback, 0, false)
}
