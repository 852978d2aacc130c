// Package normalizer turns the free-text reply of a poem agent into a
// models.PoemRecord. Replies are expected to carry a JSON object but may be
// wrapped in prose, markdown fences or typographic quotes.
package normalizer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/models"
)

// Stage reports which attempt produced the record.
type Stage string

const (
	StageDirect    Stage = "direct"
	StageExtracted Stage = "extracted"
	StageRepaired  Stage = "repaired"
	StageFailed    Stage = "failed"
)

const failureMessage = "Failed to generate poem. Please try again."

// Normalize extracts a poem record from raw agent text. On failure the
// returned error is an *apperr.Error of kind MalformedResponse and the record
// is the zero value.
func Normalize(raw string) (models.PoemRecord, error) {
	rec, _, err := NormalizeStage(raw)
	return rec, err
}

// NormalizeStage is Normalize plus the stage that succeeded.
func NormalizeStage(raw string) (models.PoemRecord, Stage, error) {
	if strings.TrimSpace(raw) == "" {
		return models.PoemRecord{}, StageFailed, malformed("agent reply is empty")
	}

	rec, stage, diag := attempt(raw)
	if stage != StageFailed {
		return rec, stage, nil
	}

	if repaired := repair(raw); repaired != raw {
		rec, stage, repairDiag := attempt(repaired)
		if stage != StageFailed {
			return rec, StageRepaired, nil
		}
		diag = repairDiag
	}

	return models.PoemRecord{}, StageFailed, malformed(diag)
}

func malformed(diag string) error {
	return apperr.Wrap(apperr.KindMalformedResponse, failureMessage, diagnostic(diag))
}

type diagnostic string

func (d diagnostic) Error() string { return string(d) }

// attempt runs the decode-whole then decode-first-object steps on text.
func attempt(text string) (models.PoemRecord, Stage, string) {
	diag := "no JSON object found in reply"

	trimmed := strings.TrimSpace(text)
	if gjson.Valid(trimmed) {
		if rec, ok := matchShapes(gjson.Parse(trimmed)); ok {
			return rec, StageDirect, ""
		}
		diag = "decoded reply has no poem text"
	}

	// Nested candidates overlap, so validation work is capped at a few
	// passes over the reply.
	budget := validateBudget * len(text)
	for _, sp := range objectSpans(text) {
		candidate := text[sp.start:sp.end]
		if budget -= len(candidate); budget < 0 {
			break
		}
		if !gjson.Valid(candidate) {
			diag = "embedded object is not valid JSON"
			continue
		}
		if rec, ok := matchShapes(gjson.Parse(candidate)); ok {
			return rec, StageExtracted, ""
		}
		diag = "decoded reply has no poem text"
		// Only the first decodable object counts.
		break
	}

	return models.PoemRecord{}, StageFailed, diag
}

const validateBudget = 4

type span struct{ start, end int }

// objectSpans returns the balanced {...} spans of text ordered by opening
// brace, found in a single pass. Quotes only open a string inside a brace,
// so prose before the object cannot flip the string state.
func objectSpans(text string) []span {
	var (
		open     []int
		spans    []span
		inString bool
		escape   bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				spans = append(spans, span{start: open[n-1], end: i + 1})
				open = open[:n-1]
			}
		}
	}
	// Spans close inner-first; callers want outer objects first.
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	return spans
}

var (
	doubleQuotes = "“”„‟″"
	singleQuotes = "‘’‚‛"
)

// repair strips fences and commentary lines, then rewrites the remaining
// text outside JSON strings: smart quotes become ASCII and trailing commas
// go away. Inside strings bare control characters are escaped.
func repair(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}

	first, last := -1, -1
	for i, line := range kept {
		if first < 0 && strings.Contains(line, "{") {
			first = i
		}
		if strings.Contains(line, "}") {
			last = i
		}
	}
	if first >= 0 && last >= first {
		kept = kept[first : last+1]
	}

	return rewrite(strings.Join(kept, "\n"))
}

// rewrite walks text once, tracking whether it is inside a string. A string
// opened by a typographic quote is closed by one too. As in objectSpans,
// quotes only open a string inside a brace.
func rewrite(text string) string {
	var (
		b      strings.Builder
		quote  rune // 0 outside a string, '"' or '“' inside
		escape bool
		depth  int
	)
	b.Grow(len(text))

	for i, r := range text {
		if r == '\ufeff' {
			continue
		}
		if quote != 0 {
			switch {
			case escape:
				escape = false
				b.WriteRune(r)
			case r == '\\':
				escape = true
				b.WriteRune(r)
			case r == '"' && quote == '"':
				quote = 0
				b.WriteRune(r)
			case r == '"':
				b.WriteString(`\"`)
			case quote != '"' && strings.ContainsRune(doubleQuotes, r):
				quote = 0
				b.WriteByte('"')
			case r < 0x20:
				writeControl(&b, r)
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '{':
			depth++
			b.WriteRune(r)
		case r == '}':
			if depth > 0 {
				depth--
			}
			b.WriteRune(r)
		case r == '"':
			if depth > 0 {
				quote = '"'
			}
			b.WriteRune(r)
		case strings.ContainsRune(doubleQuotes, r):
			if depth > 0 {
				quote = '“'
			}
			b.WriteByte('"')
		case strings.ContainsRune(singleQuotes, r):
			b.WriteByte('\'')
		case r == '\u00a0':
			b.WriteByte(' ')
		case r == ',' && closesNext(text[i+1:]):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// closesNext reports whether the next non-space character closes an object
// or array.
func closesNext(rest string) bool {
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	return trimmed != "" && (trimmed[0] == '}' || trimmed[0] == ']')
}

func writeControl(b *strings.Builder, r rune) {
	switch r {
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	default:
		fmt.Fprintf(b, `\u%04x`, r)
	}
}
