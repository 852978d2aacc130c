package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MockAgent returns a canned poem in the agent's nested reply format. It is
// used for local development and tests when no provider key is configured.
type MockAgent struct {
	// Reply, when set, is returned verbatim instead of the canned poem.
	Reply string
	Err   error
	Delay time.Duration
}

func (m *MockAgent) Provider() string { return "mock" }

func (m *MockAgent) Call(ctx context.Context, prompt string) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}

	subject := subjectOf(prompt)
	reply := map[string]any{
		"result": map[string]any{
			"poem": strings.Join([]string{
				fmt.Sprintf("Of %s I write a quiet line,", subject),
				"and let the evening make it mine.",
			}, "\n"),
			"title":        capitalize(subject),
			"style":        "couplet",
			"stanza_count": 1,
			"line_count":   2,
		},
		"confidence": 1.0,
		"metadata": map[string]any{
			"processing_time":   "0s",
			"model_used":        "mock",
			"creative_elements": []string{"rhyme"},
		},
	}
	b, err := json.Marshal(reply)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func subjectOf(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "Subject: "); ok {
			if s := strings.TrimSpace(rest); s != "" {
				return s
			}
		}
	}
	return "nothing much"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
