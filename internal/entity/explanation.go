package entity

// Explanation is the result of answering a question about a verse.
type Explanation struct {
	Reference *VerseReference    `json:"reference,omitempty"`
	Entry     *CommentaryEntry   `json:"entry,omitempty"`
	Related   []*CommentaryEntry `json:"related,omitempty"`
	Grounded  bool               `json:"grounded"` // commentary was embedded in the prompt
	Kind      AnswerKind         `json:"kind"`
	Language  Language           `json:"language"`
	Style     StyleLevel         `json:"style"`
	Prompt    string             `json:"-"`
	Text      string             `json:"text"`
	Cached    bool               `json:"cached"`
	Audio     []byte             `json:"audio,omitempty"`
}

// CacheKey identifies a generated response.
type CacheKey struct {
	Prompt   string
	Language Language
	Style    StyleLevel
}
