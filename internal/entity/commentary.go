package entity

import (
	"fmt"
	"strings"
)

const (
	MinSurah = 1
	MaxSurah = 114
)

// CommentaryEntry is one verse's scholarly commentary. Entries are immutable
// once they are part of an index.
type CommentaryEntry struct {
	SurahNumber          int      `json:"surah_number" yaml:"surah_number"`
	SurahName            string   `json:"surah_name" yaml:"surah_name"`
	SurahNameLocalScript string   `json:"surah_name_local_script" yaml:"surah_name_local_script"`
	AyahNumber           int      `json:"ayah_number" yaml:"ayah_number"`
	AyahRange            string   `json:"ayah_range,omitempty" yaml:"ayah_range,omitempty"` // display label for commentary spanning several ayahs, e.g. "6-7"
	SourceText           string   `json:"source_text" yaml:"source_text"`
	Translation          string   `json:"translation" yaml:"translation"`
	Commentary           string   `json:"commentary" yaml:"commentary"`
	Keywords             []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Topics               []string `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Ref returns the composite key of the entry.
func (e *CommentaryEntry) Ref() VerseReference {
	return VerseReference{Surah: e.SurahNumber, Ayah: e.AyahNumber}
}

// Clone returns a deep copy so callers can never reach index-owned slices.
func (e *CommentaryEntry) Clone() *CommentaryEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Keywords != nil {
		out.Keywords = append([]string(nil), e.Keywords...)
	}
	if e.Topics != nil {
		out.Topics = append([]string(nil), e.Topics...)
	}
	return &out
}

// VerseReference identifies a single ayah. It is produced by parsing user
// input and is never persisted.
type VerseReference struct {
	Surah int `json:"surah"`
	Ayah  int `json:"ayah"`
}

func (r VerseReference) String() string {
	return fmt.Sprintf("%d:%d", r.Surah, r.Ayah)
}

// Valid reports whether both parts are positive and the surah is in range.
func (r VerseReference) Valid() bool {
	return r.Surah >= MinSurah && r.Surah <= MaxSurah && r.Ayah > 0
}

// CorpusStats summarises an index snapshot.
type CorpusStats struct {
	TotalVerses int `json:"total_verses"`
	TotalSurahs int `json:"total_surahs"`
	Topics      int `json:"topics"`
}

// NormalizeKeyword lower-cases and trims a keyword or query token.
func NormalizeKeyword(word string) string {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}
