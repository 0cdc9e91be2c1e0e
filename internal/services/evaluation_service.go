package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/models"
)

const (
	evaluatorSystem     = "You are a friendly coding interview evaluator."
	feedbackEmpty       = "Code received. Good effort!"
	feedbackUnavailable = "Code received. Unable to provide detailed feedback at the moment."
)

type completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// EvaluationService asks the language model to review a submission. It
// satisfies interview.Evaluator.
type EvaluationService struct {
	llm completer
	log *logrus.Logger
}

func NewEvaluationService(llm completer, log *logrus.Logger) *EvaluationService {
	return &EvaluationService{llm: llm, log: log}
}

func (s *EvaluationService) Evaluate(ctx context.Context, ch *models.Challenge, language, code string) string {
	reply, err := s.llm.Complete(ctx, evaluatorSystem, evaluationPrompt(ch.Description, language, code))
	if err != nil {
		s.log.WithError(err).Error("code evaluation failed")
		return feedbackUnavailable
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return feedbackEmpty
	}
	return reply
}

func evaluationPrompt(problem, language, code string) string {
	return fmt.Sprintf(`You are a coding interview evaluator. Review the following code submission.

Problem: %s

Language: %s

Code:
`+"```"+`%s
%s
`+"```"+`

Provide brief, constructive feedback covering:
1. Correctness - Does it solve the problem?
2. Code quality - Is it clean and readable?
3. Efficiency - Any performance concerns?

Keep your response conversational and under 150 words. Be encouraging but honest.`, problem, language, language, code)
}
