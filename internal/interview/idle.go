package interview

var idleNudges = [...]string{
	"(The user has been silent for a while. " +
		"Gently ask if they are still there, if they need a moment to think, " +
		"or if they would like to move on. Do not apologize.)",
	"(The user is still silent after a previous nudge. " +
		"Politely check if they are still present, e.g., 'Are you still with me?' " +
		"or 'Just checking if you're still there.' Keep it brief.)",
	"(The user is *still* silent. Ask if they are still there. " +
		"If they don't respond, you can suggest moving on, " +
		"or ask if they'd like to end the interview.)",
}

// IdleNudgeIndex maps the consecutive idle count (starting at 1) to a nudge.
func IdleNudgeIndex(count int) int {
	i := count - 1
	if i < 0 {
		i = 0
	}
	if i > len(idleNudges)-1 {
		i = len(idleNudges) - 1
	}
	return i
}

func IdleNudge(count int) string { return idleNudges[IdleNudgeIndex(count)] }
