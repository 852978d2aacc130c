package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poetica-backend/internal/models"
)

func TestCopy_Verbatim(t *testing.T) {
	p := models.SavedPoem{ID: "1", Title: "Dusk", Content: "  Line1\n\nLine2  "}
	got := Copy(p)
	assert.True(t, got.Copied)
	assert.Equal(t, p.Content, got.Text)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title, format, want string
	}{
		{"Dusk", FormatText, "Dusk.txt"},
		{"Dusk", FormatHTML, "Dusk.html"},
		{"Dusk", "pdf", "Dusk.txt"},
		{"Poem - 3/14/2026", FormatText, "Poem - 3142026.txt"},
		{"../../etc/passwd", FormatText, "etcpasswd.txt"},
		{"  a\t\tquiet\nnight  ", FormatText, "a quiet night.txt"},
		{`say "hi"`, FormatText, "say hi.txt"},
		{"", FormatText, "poem.txt"},
		{"...", FormatText, "poem.txt"},
		{"Ночь", FormatText, "Ночь.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.title, tt.format))
		})
	}
}

func TestFilename_Truncates(t *testing.T) {
	name := Filename(strings.Repeat("x", 300), FormatText)
	assert.Equal(t, maxNameRunes+len(".txt"), len(name))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, []byte("Line1\nLine2"), PlainText("Line1\nLine2"))
}

func TestHTML_HardWrapsAndEscapes(t *testing.T) {
	out, err := HTML("Dusk <b>", "Line1\nLine2\n\nLine3 <script>")
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<title>Dusk &lt;b&gt;</title>")
	assert.Contains(t, page, "Line1<br")
	assert.Equal(t, 2, strings.Count(page, "<p>"))
	assert.NotContains(t, page, "<script>")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/html; charset=utf-8", ContentType(FormatHTML))
	assert.Equal(t, "text/plain; charset=utf-8", ContentType(FormatText))
}
