package models

// PoemRecord is the structured form of an agent reply.
type PoemRecord struct {
	Poem            string        `json:"poem"`
	Title           *string       `json:"title,omitempty"`
	Style           *string       `json:"style,omitempty"`
	StanzaCount     *int          `json:"stanza_count,omitempty"`
	LineCount       *int          `json:"line_count,omitempty"`
	FormattingNotes *string       `json:"formatting_notes,omitempty"`
	Confidence      *float64      `json:"confidence,omitempty"`
	Metadata        *PoemMetadata `json:"metadata,omitempty"`
}

type PoemMetadata struct {
	ProcessingTime   *string  `json:"processing_time,omitempty"`
	ModelUsed        *string  `json:"model_used,omitempty"`
	CreativeElements []string `json:"creative_elements,omitempty"`
}

// SavedPoem is one entry of a session's persisted collection.
type SavedPoem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Style      *string `json:"style,omitempty"`
	Prompt     string  `json:"prompt"`
	Timestamp  int64   `json:"timestamp"` // unix millis
	IsFavorite bool    `json:"is_favorite"`
}

type GeneratePoemRequest struct {
	Prompt string `json:"prompt"`
	Tone   string `json:"tone"`
}

type CopyResponse struct {
	Copied bool   `json:"copied"`
	Text   string `json:"text"`
}

type SessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
}
