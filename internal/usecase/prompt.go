package usecase

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

const (
	promptGrounded   = "grounded.tmpl"
	promptGeneral    = "general.tmpl"
	promptReflection = "reflection.tmpl"
)

// PromptOptions selects the output language, depth and kind of a prompt.
// Reference names the requested verse when no entry is available for it.
type PromptOptions struct {
	Language  entity.Language
	Style     entity.StyleLevel
	Kind      entity.AnswerKind
	Reference *entity.VerseReference
}

// PromptBuilder assembles generation prompts.
type PromptBuilder interface {
	Build(entry *entity.CommentaryEntry, question string, opts PromptOptions) (string, error)
}

type templatePromptBuilder struct {
	templates *template.Template
}

// NewPromptBuilder parses the embedded prompt templates.
func NewPromptBuilder() (PromptBuilder, error) {
	tmpl, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	for _, name := range []string{promptGrounded, promptGeneral, promptReflection} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("prompt template %q missing", name)
		}
	}
	return &templatePromptBuilder{templates: tmpl}, nil
}

type promptData struct {
	Entry      *entity.CommentaryEntry
	Reference  *entity.VerseReference
	AyahLabel  string
	Question   string
	Language   string
	Style      entity.StyleLevel
	StyleGuide string
}

// Build embeds entry.Commentary verbatim when entry is non-nil; otherwise it
// produces the general prompt that forbids invented citations. Either way the
// prompt names the verse when one is known.
func (b *templatePromptBuilder) Build(entry *entity.CommentaryEntry, question string, opts PromptOptions) (string, error) {
	style := opts.Style
	if style == "" {
		style = entity.StyleSimple
	}
	data := promptData{
		Entry:      entry,
		Question:   strings.TrimSpace(question),
		Language:   opts.Language.DisplayName(),
		Style:      style,
		StyleGuide: styleGuide(style),
	}
	if opts.Reference != nil && opts.Reference.Valid() {
		ref := *opts.Reference
		data.Reference = &ref
	}

	name := promptGeneral
	if entry != nil {
		name = promptGrounded
		ref := entry.Ref()
		data.Reference = &ref
		data.AyahLabel = entry.AyahRange
		if data.AyahLabel == "" {
			data.AyahLabel = fmt.Sprint(entry.AyahNumber)
		}
	}
	if opts.Kind == entity.KindReflection {
		name = promptReflection
	}

	var sb strings.Builder
	if err := b.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("execute prompt %s: %w", name, err)
	}
	return sb.String(), nil
}

func styleGuide(style entity.StyleLevel) string {
	switch style {
	case entity.StyleDetailed:
		return "a thorough explanation with historical and linguistic context"
	case entity.StyleScholarly:
		return "academic depth, noting Arabic terms and the views of classical scholars"
	default:
		return "plain language suitable for someone new to tafsir"
	}
}
