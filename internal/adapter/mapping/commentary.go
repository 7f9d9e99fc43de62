package mapping

import (
	"strings"

	"github.com/samber/lo"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

// Entry is the JSON shape of a commentary entry.
type Entry struct {
	Reference            string   `json:"reference"`
	SurahNumber          int      `json:"surah_number"`
	SurahName            string   `json:"surah_name"`
	SurahNameLocalScript string   `json:"surah_name_local_script,omitempty"`
	AyahNumber           int      `json:"ayah_number"`
	AyahRange            string   `json:"ayah_range,omitempty"`
	SourceText           string   `json:"source_text,omitempty"`
	Translation          string   `json:"translation,omitempty"`
	Commentary           string   `json:"commentary"`
	Keywords             []string `json:"keywords,omitempty"`
	Topics               []string `json:"topics,omitempty"`
}

type Reference struct {
	Surah int    `json:"surah"`
	Ayah  int    `json:"ayah"`
	Label string `json:"label"`
}

type Explanation struct {
	Reference *Reference `json:"reference,omitempty"`
	Entry     *Entry     `json:"entry,omitempty"`
	Related   []*Entry   `json:"related,omitempty"`
	Grounded  bool       `json:"grounded"`
	Kind      string     `json:"kind"`
	Language  string     `json:"language"`
	Style     string     `json:"style"`
	Text      string     `json:"text"`
	Cached    bool       `json:"cached"`
	Audio     []byte     `json:"audio,omitempty"`
}

func ToEntry(in *entity.CommentaryEntry) *Entry {
	if in == nil {
		return nil
	}
	return &Entry{
		Reference:            in.Ref().String(),
		SurahNumber:          in.SurahNumber,
		SurahName:            in.SurahName,
		SurahNameLocalScript: in.SurahNameLocalScript,
		AyahNumber:           in.AyahNumber,
		AyahRange:            in.AyahRange,
		SourceText:           in.SourceText,
		Translation:          in.Translation,
		Commentary:           in.Commentary,
		Keywords:             in.Keywords,
		Topics:               in.Topics,
	}
}

func ToEntries(in []*entity.CommentaryEntry) []*Entry {
	return lo.Map(in, func(e *entity.CommentaryEntry, _ int) *Entry { return ToEntry(e) })
}

func FromEntry(in *Entry) *entity.CommentaryEntry {
	if in == nil {
		return nil
	}
	return &entity.CommentaryEntry{
		SurahNumber:          in.SurahNumber,
		SurahName:            strings.TrimSpace(in.SurahName),
		SurahNameLocalScript: strings.TrimSpace(in.SurahNameLocalScript),
		AyahNumber:           in.AyahNumber,
		AyahRange:            strings.TrimSpace(in.AyahRange),
		SourceText:           in.SourceText,
		Translation:          strings.TrimSpace(in.Translation),
		Commentary:           strings.TrimSpace(in.Commentary),
		Keywords:             in.Keywords,
		Topics:               in.Topics,
	}
}

func FromEntries(in []*Entry) []*entity.CommentaryEntry {
	return lo.Map(in, func(e *Entry, _ int) *entity.CommentaryEntry { return FromEntry(e) })
}

func ToReference(in *entity.VerseReference) *Reference {
	if in == nil {
		return nil
	}
	return &Reference{Surah: in.Surah, Ayah: in.Ayah, Label: in.String()}
}

func ToExplanation(in *entity.Explanation) *Explanation {
	if in == nil {
		return nil
	}
	return &Explanation{
		Reference: ToReference(in.Reference),
		Entry:     ToEntry(in.Entry),
		Related:   ToEntries(in.Related),
		Grounded:  in.Grounded,
		Kind:      string(in.Kind),
		Language:  in.Language.CodeOrDefault(),
		Style:     string(in.Style),
		Text:      in.Text,
		Cached:    in.Cached,
		Audio:     in.Audio,
	}
}
