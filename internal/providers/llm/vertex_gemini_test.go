package llm

import (
	"testing"
	"time"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/yoockh/yoointerview/internal/models"
)

func msg(role models.Role, text string) models.Message {
	return models.NewMessage(role, text, time.Now())
}

func TestToContentsSplitsLastUserTurn(t *testing.T) {
	t.Parallel()

	past, last := toContents([]models.Message{
		msg(models.RoleAssistant, "Good day."),
		msg(models.RoleUser, "Hi"),
		msg(models.RoleAssistant, "Tell me about yourself."),
		msg(models.RoleUser, "I write Go."),
		msg(models.RoleUser, "(The user has been silent for a while.)"),
	})

	if len(past) != 3 {
		t.Fatalf("len(past) = %d, want 3", len(past))
	}
	if past[0].Role != "model" || past[1].Role != "user" || past[2].Role != "model" {
		t.Fatalf("roles = %s/%s/%s", past[0].Role, past[1].Role, past[2].Role)
	}
	if len(last) != 2 || last[0] != vertexgenai.Text("I write Go.") {
		t.Fatalf("last = %#v", last)
	}
}

func TestToContentsMapsSystemToUser(t *testing.T) {
	t.Parallel()

	past, last := toContents([]models.Message{msg(models.RoleSystem, "nudge")})
	if len(past) != 0 || len(last) != 1 || last[0] != vertexgenai.Text("nudge") {
		t.Fatalf("past=%v last=%#v", past, last)
	}
}

func TestToContentsTrailingModelTurn(t *testing.T) {
	t.Parallel()

	past, last := toContents([]models.Message{
		msg(models.RoleUser, "write code please"),
		msg(models.RoleAssistant, "Now, let's test your coding skills."),
	})
	if len(past) != 2 || len(last) != 1 || last[0] != vertexgenai.Text("(continue)") {
		t.Fatalf("past=%d last=%#v", len(past), last)
	}
}

func TestToContentsEmpty(t *testing.T) {
	t.Parallel()

	past, last := toContents([]models.Message{msg(models.RoleUser, "   ")})
	if past != nil || last != nil {
		t.Fatalf("want nil, got %v %v", past, last)
	}
}
