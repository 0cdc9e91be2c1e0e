package interview

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestIdleNudgeIndex(t *testing.T) {
	t.Parallel()

	for count, want := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 40: 2} {
		if got := IdleNudgeIndex(count); got != want {
			t.Fatalf("IdleNudgeIndex(%d) = %d, want %d", count, got, want)
		}
	}
	if !strings.Contains(IdleNudge(1), "Do not apologize") {
		t.Fatalf("first nudge = %q", IdleNudge(1))
	}
}

func TestWantsChallenge(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{
		"Can I do a CODING challenge?": true,
		"I program in Go":              true,
		"I studied physics":            false,
		"":                             false,
	} {
		if got := wantsChallenge(in); got != want {
			t.Fatalf("wantsChallenge(%q) = %v", in, got)
		}
	}
}

func TestSystemPromptCarriesResume(t *testing.T) {
	t.Parallel()

	p := SystemPrompt("  Built a compiler in Go.  ")
	if !strings.HasPrefix(p, "You are hAi-Buddy") || !strings.HasSuffix(p, "Built a compiler in Go.") {
		t.Fatalf("prompt = %q", p)
	}
}

func TestFragmentQueueOrderAndClose(t *testing.T) {
	t.Parallel()

	q := newFragmentQueue()
	q.push([]byte("a"))
	q.push([]byte("b"))
	q.close()
	q.push([]byte("dropped"))

	ctx := context.Background()
	var got []string
	for {
		b, ok, err := q.pop(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, string(b))
	}
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("got %v", got)
	}
}

func TestFragmentQueuePopCancelled(t *testing.T) {
	t.Parallel()

	q := newFragmentQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := q.pop(ctx); err == nil {
		t.Fatal("pop on an empty open queue returned without cancellation")
	}
}

func TestRunSpeechStreamProgressMarkers(t *testing.T) {
	t.Parallel()

	q := newFragmentQueue()
	for i := 0; i < 20; i++ {
		q.push([]byte{byte(i)})
	}
	q.close()

	var got []loopMsg
	post := func(_ context.Context, m loopMsg) bool { got = append(got, m); return true }
	runSpeechStream(context.Background(), 7, q, fakeSTT{text: " hello "}, "en-US", post)

	want := []string{"Listening...", "Processing speech... (10 chunks)", "Processing speech... (20 chunks)"}
	if len(got) != 4 {
		t.Fatalf("got %d messages: %+v", len(got), got)
	}
	for i, w := range want {
		if p, ok := got[i].(partialMsg); !ok || p.text != w || p.id != 7 {
			t.Fatalf("msg %d = %+v, want %q", i, got[i], w)
		}
	}
	if d, ok := got[3].(speechDoneMsg); !ok || d.text != "hello" || d.confidence != 0.9 || d.err != nil {
		t.Fatalf("final = %+v", got[3])
	}
}

func TestDecodeAudio(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"aGk=", "data:audio/webm;base64,aGk="} {
		b, err := decodeAudio(in)
		if err != nil || string(b) != "hi" {
			t.Fatalf("%q: %q %v", in, b, err)
		}
	}
	if _, err := decodeAudio("   "); err == nil {
		t.Fatal("empty payload accepted")
	}
	if _, err := decodeAudio("%%%"); err == nil {
		t.Fatal("invalid base64 accepted")
	}
}
