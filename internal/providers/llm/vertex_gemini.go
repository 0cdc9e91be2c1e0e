package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/yoockh/yoointerview/internal/models"
	"google.golang.org/api/iterator"
)

type VertexOptions struct {
	Model       string
	Temperature float32
	TopP        float32
	TopK        int32
}

type VertexGemini struct {
	client *vertexgenai.Client
	opts   VertexOptions
}

func NewVertexGemini(ctx context.Context, projectID, location string, opts VertexOptions) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, opts: opts}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) model(system string) *vertexgenai.GenerativeModel {
	m := v.client.GenerativeModel(v.opts.Model)
	if v.opts.Temperature > 0 {
		m.SetTemperature(v.opts.Temperature)
	}
	if v.opts.TopP > 0 {
		m.SetTopP(v.opts.TopP)
	}
	if v.opts.TopK > 0 {
		m.SetTopK(v.opts.TopK)
	}
	if system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	}
	return m
}

func (v *VertexGemini) StreamChat(ctx context.Context, system string, history []models.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		past, last := toContents(history)
		if len(last) == 0 {
			errs <- errors.New("llm: empty conversation")
			return
		}

		cs := v.model(system).StartChat()
		cs.History = past

		it := cs.SendMessageStream(ctx, last...)
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, t := range textParts(resp) {
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}

func (v *VertexGemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := v.model(system).GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(textParts(resp), "")), nil
}

func textParts(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}

// toContents maps a transcript onto Gemini's two-role chat. System turns
// become user turns, consecutive same-role turns are merged, and the final
// user turn is split off as the message to send. A trailing model turn is
// followed by a short continuation cue so the request always ends with the user.
func toContents(history []models.Message) ([]*vertexgenai.Content, []vertexgenai.Part) {
	var contents []*vertexgenai.Content
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, vertexgenai.Text(m.Content))
			continue
		}
		contents = append(contents, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(m.Content)},
		})
	}
	if len(contents) == 0 {
		return nil, nil
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return contents, []vertexgenai.Part{vertexgenai.Text("(continue)")}
	}
	return contents[:len(contents)-1], last.Parts
}
