package normalizer

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"poetica-backend/internal/models"
)

// shape recognizes one layout of the agent payload.
type shape struct {
	name  string
	match func(root gjson.Result) (models.PoemRecord, bool)
}

// Tried in order; the first match wins.
var shapes = []shape{
	{name: "nested", match: matchNested},
	{name: "flat", match: matchFlat},
	{name: "envelope", match: matchEnvelope},
}

var envelopeKeys = []string{"response", "data", "output"}

func matchShapes(root gjson.Result) (models.PoemRecord, bool) {
	// A reply that is itself a JSON string holding an object.
	if root.Type == gjson.String && gjson.Valid(root.Str) {
		root = gjson.Parse(root.Str)
	}
	if !root.IsObject() {
		return models.PoemRecord{}, false
	}

	for _, s := range shapes {
		if rec, ok := s.match(root); ok {
			return rec, true
		}
	}
	return models.PoemRecord{}, false
}

// {"result": {"poem": ...}, "confidence": ..., "metadata": {...}}
func matchNested(root gjson.Result) (models.PoemRecord, bool) {
	result := root.Get("result")
	if !result.IsObject() {
		return models.PoemRecord{}, false
	}

	rec, ok := recordFrom(result)
	if !ok {
		return models.PoemRecord{}, false
	}

	if c, ok := floatField(root, "confidence"); ok {
		rec.Confidence = &c
	}
	if meta := metadataFrom(root.Get("metadata")); meta != nil {
		rec.Metadata = meta
	}
	return rec, true
}

// {"poem": ..., "title": ...}
func matchFlat(root gjson.Result) (models.PoemRecord, bool) {
	return recordFrom(root)
}

// {"response": {...}} or {"response": "<json text>"}, unwrapped one level.
func matchEnvelope(root gjson.Result) (models.PoemRecord, bool) {
	for _, key := range envelopeKeys {
		inner := root.Get(key)
		if inner.Type == gjson.String && gjson.Valid(inner.Str) {
			inner = gjson.Parse(inner.Str)
		}
		if !inner.IsObject() {
			continue
		}
		if rec, ok := matchNested(inner); ok {
			return rec, true
		}
		if rec, ok := matchFlat(inner); ok {
			return rec, true
		}
	}
	return models.PoemRecord{}, false
}

func recordFrom(obj gjson.Result) (models.PoemRecord, bool) {
	poem, ok := poemText(obj.Get("poem"))
	if !ok {
		return models.PoemRecord{}, false
	}

	rec := models.PoemRecord{
		Poem:            poem,
		Title:           stringField(obj, "title"),
		Style:           stringField(obj, "style"),
		FormattingNotes: stringField(obj, "formatting_notes", "formattingNotes"),
	}
	if n, ok := intField(obj, "stanza_count", "stanzaCount"); ok {
		rec.StanzaCount = &n
	}
	if n, ok := intField(obj, "line_count", "lineCount"); ok {
		rec.LineCount = &n
	}
	if c, ok := floatField(obj, "confidence"); ok {
		rec.Confidence = &c
	}
	rec.Metadata = metadataFrom(obj.Get("metadata"))
	return rec, true
}

// poemText accepts a string body or an array of lines.
func poemText(v gjson.Result) (string, bool) {
	var text string
	switch {
	case v.Type == gjson.String:
		text = v.Str
	case v.IsArray():
		var lines []string
		for _, line := range v.Array() {
			lines = append(lines, line.String())
		}
		text = strings.Join(lines, "\n")
	default:
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func metadataFrom(v gjson.Result) *models.PoemMetadata {
	if !v.IsObject() {
		return nil
	}
	meta := &models.PoemMetadata{
		ProcessingTime: stringField(v, "processing_time", "processingTime"),
		ModelUsed:      stringField(v, "model_used", "modelUsed"),
	}
	for _, key := range []string{"creative_elements", "creativeElements"} {
		elems := v.Get(key)
		if !elems.IsArray() {
			continue
		}
		for _, e := range elems.Array() {
			if s := strings.TrimSpace(e.String()); s != "" {
				meta.CreativeElements = append(meta.CreativeElements, s)
			}
		}
		break
	}
	if meta.ProcessingTime == nil && meta.ModelUsed == nil && meta.CreativeElements == nil {
		return nil
	}
	return meta
}

func stringField(obj gjson.Result, keys ...string) *string {
	for _, key := range keys {
		v := obj.Get(key)
		if v.Type != gjson.String && v.Type != gjson.Number {
			continue
		}
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		return &s
	}
	return nil
}

func intField(obj gjson.Result, keys ...string) (int, bool) {
	for _, key := range keys {
		v := obj.Get(key)
		switch v.Type {
		case gjson.Number:
			return int(v.Int()), true
		case gjson.String:
			if n, err := strconv.Atoi(strings.TrimSpace(v.Str)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func floatField(obj gjson.Result, keys ...string) (float64, bool) {
	for _, key := range keys {
		v := obj.Get(key)
		switch v.Type {
		case gjson.Number:
			return v.Num, true
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
