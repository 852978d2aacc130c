// Package export turns saved poems into clipboard payloads and downloadable files.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"poetica-backend/internal/models"
)

// CopiedTTL is how long a copy acknowledgement stays visible.
const CopiedTTL = 2 * time.Second

const (
	FormatText = "txt"
	FormatHTML = "html"

	maxNameRunes = 100
	fallbackName = "poem"
)

var md = goldmark.New(
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Copy returns the clipboard payload for p: its body, verbatim.
func Copy(p models.SavedPoem) models.CopyResponse {
	return models.CopyResponse{Copied: true, Text: p.Content}
}

// Filename builds "<title>.<ext>" with characters that are unsafe in file
// names or Content-Disposition headers removed.
func Filename(title, format string) string {
	if format != FormatHTML {
		format = FormatText
	}

	var b strings.Builder
	space := false
	for _, r := range title {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	name := b.String()
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = string(runes[:maxNameRunes])
	}
	name = strings.Trim(name, ". ")
	if name == "" {
		name = fallbackName
	}
	return name + "." + format
}

// PlainText is the download body for the txt format.
func PlainText(content string) []byte {
	return []byte(content)
}

// HTML renders the poem as a standalone page. Line breaks inside a stanza are
// kept as <br>; blank lines separate stanzas.
func HTML(title, content string) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("render poem: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n</head>\n<body>\n<h1>%s</h1>\n",
		html.EscapeString(title), html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// ContentType returns the media type for format.
func ContentType(format string) string {
	if format == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
