package interview

import (
	"context"

	"github.com/yoockh/yoointerview/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/yoockh/yoointerview/internal/interview")

const generationFailed = "Language model error"

type tokenMsg struct {
	id    uint64
	token string
}

type genDoneMsg struct {
	id  uint64
	err error
}

func (tokenMsg) loopMsg()   {}
func (genDoneMsg) loopMsg() {}

// runGeneration forwards every increment to the loop and reports the end of
// the stream. It reports nothing once ctx is cancelled.
func runGeneration(ctx context.Context, id uint64, llm Generator, system string, history []models.Message, post func(context.Context, loopMsg) bool) {
	ctx, span := tracer.Start(ctx, "interview.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("history.len", len(history)))

	chunks, errs := llm.StreamChat(ctx, system, history)
	n := 0
	for tok := range chunks {
		if tok == "" {
			continue
		}
		n++
		if !post(ctx, tokenMsg{id: id, token: tok}) {
			span.SetAttributes(attribute.Bool("cancelled", true))
			return
		}
	}
	err := <-errs
	span.SetAttributes(attribute.Int("tokens", n))
	if ctx.Err() != nil {
		span.SetAttributes(attribute.Bool("cancelled", true))
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
	}
	post(ctx, genDoneMsg{id: id, err: err})
}
