package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
	"github.com/eslsoft/tafsirnet/pkg/filterexpr"
	"github.com/eslsoft/tafsirnet/pkg/reference"
)

// Generator produces text from a prompt. Implementations talk to an external
// completion provider.
type Generator interface {
	Generate(ctx context.Context, prompt string, language entity.Language, style entity.StyleLevel) (string, error)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, language entity.Language) ([]byte, error)
}

// ResponseCache stores generated text. Backend failures are treated as misses.
type ResponseCache interface {
	Get(ctx context.Context, key entity.CacheKey) (string, bool)
	Set(ctx context.Context, key entity.CacheKey, text string)
}

// ReferenceParser finds a verse reference in free text.
type ReferenceParser interface {
	Parse(text string) (reference.Ref, bool)
}

// ParserFactory builds a parser scoped to the surahs present in the corpus.
type ParserFactory func(scope []int) ReferenceParser

// DefaultParserFactory scopes the built-in reference parser.
func DefaultParserFactory(scope []int) ReferenceParser {
	return reference.NewParser(reference.WithScope(scope))
}

// AskRequest is a question about a verse. Surah and Ayah are optional; when
// unset the reference is parsed from Question. A reflection with neither a
// question nor a verse reflects on the verse of the day.
type AskRequest struct {
	Question  string
	Surah     int
	Ayah      int
	Kind      entity.AnswerKind
	Language  entity.Language
	Style     entity.StyleLevel
	WithAudio bool
}

// TafsirUsecase answers verse lookups, searches and explanation requests.
type TafsirUsecase interface {
	Lookup(ctx context.Context, surah, ayah int) (*entity.CommentaryEntry, bool)
	Search(ctx context.Context, query string) []*entity.CommentaryEntry
	ParseReference(ctx context.Context, text string) (entity.VerseReference, bool)
	BuildPrompt(ctx context.Context, entry *entity.CommentaryEntry, question string, opts PromptOptions) (string, error)
	Ask(ctx context.Context, req AskRequest) (*entity.Explanation, error)
	AskInLanguages(ctx context.Context, req AskRequest, languages []entity.Language) ([]*entity.Explanation, error)
	ListByTopic(ctx context.Context, topic string) []*entity.CommentaryEntry
	DailyVerse(ctx context.Context) (*entity.CommentaryEntry, error)
	Stats(ctx context.Context) entity.CorpusStats
	List(ctx context.Context, query *repository.ListCommentaryQuery) ([]*entity.CommentaryEntry, int, error)
	AddEntries(ctx context.Context, entries []*entity.CommentaryEntry) error
}

const (
	_maxRelated        = 3
	_minSearchTermLen  = 4
	_maxFanOutParallel = 3
)

// TafsirDeps groups the collaborators of the tafsir usecase. Generator,
// Synthesizer, Cache and Store may be nil.
type TafsirDeps struct {
	Repo        repository.CommentaryRepository
	Store       repository.CorpusStore
	Prompts     PromptBuilder
	Parsers     ParserFactory
	Generator   Generator
	Synthesizer Synthesizer
	Cache       ResponseCache
	Rand        *rand.Rand
}

type tafsirUsecase struct {
	repo        repository.CommentaryRepository
	store       repository.CorpusStore
	prompts     PromptBuilder
	parsers     ParserFactory
	generator   Generator
	synthesizer Synthesizer
	cache       ResponseCache

	randMu sync.Mutex
	rnd    *rand.Rand

	writeMu  sync.Mutex // serialises AddEntries
	parserMu sync.RWMutex
	parser   ReferenceParser
}

func NewTafsirUsecase(deps TafsirDeps) (TafsirUsecase, error) {
	if deps.Repo == nil {
		return nil, errors.New("commentary repository required")
	}
	if deps.Prompts == nil {
		pb, err := NewPromptBuilder()
		if err != nil {
			return nil, err
		}
		deps.Prompts = pb
	}
	if deps.Parsers == nil {
		deps.Parsers = DefaultParserFactory
	}
	return &tafsirUsecase{
		repo:        deps.Repo,
		store:       deps.Store,
		prompts:     deps.Prompts,
		parsers:     deps.Parsers,
		generator:   deps.Generator,
		synthesizer: deps.Synthesizer,
		cache:       deps.Cache,
		rnd:         deps.Rand,
		parser:      deps.Parsers(deps.Repo.Surahs()),
	}, nil
}

func (u *tafsirUsecase) Lookup(_ context.Context, surah, ayah int) (*entity.CommentaryEntry, bool) {
	return u.repo.Lookup(surah, ayah)
}

func (u *tafsirUsecase) Search(_ context.Context, query string) []*entity.CommentaryEntry {
	return u.repo.Search(query)
}

func (u *tafsirUsecase) ParseReference(_ context.Context, text string) (entity.VerseReference, bool) {
	u.parserMu.RLock()
	p := u.parser
	u.parserMu.RUnlock()

	ref, ok := p.Parse(text)
	if !ok {
		return entity.VerseReference{}, false
	}
	return entity.VerseReference{Surah: ref.Surah, Ayah: ref.Ayah}, true
}

func (u *tafsirUsecase) BuildPrompt(_ context.Context, entry *entity.CommentaryEntry, question string, opts PromptOptions) (string, error) {
	return u.prompts.Build(entry, question, opts)
}

func (u *tafsirUsecase) Ask(ctx context.Context, req AskRequest) (*entity.Explanation, error) {
	question := strings.TrimSpace(req.Question)
	if req.Kind == "" {
		req.Kind = entity.KindExplanation
	}
	if question == "" && (req.Surah <= 0 || req.Ayah <= 0) {
		if req.Kind != entity.KindReflection {
			return nil, entity.ErrEmptyQuestion
		}
		daily, err := u.DailyVerse(ctx)
		if err != nil {
			return nil, err
		}
		req.Surah, req.Ayah = daily.SurahNumber, daily.AyahNumber
	}
	if req.Style == "" {
		req.Style = entity.StyleSimple
	}
	if req.Language == entity.LanguageUnspecified {
		req.Language = entity.LanguageEnglish
	}

	out := &entity.Explanation{Kind: req.Kind, Language: req.Language, Style: req.Style}
	u.resolve(ctx, req, question, out)

	prompt, err := u.prompts.Build(out.Entry, question, PromptOptions{
		Language:  req.Language,
		Style:     req.Style,
		Kind:      req.Kind,
		Reference: out.Reference,
	})
	if err != nil {
		return nil, err
	}
	out.Prompt = prompt

	text, cached, err := u.generate(ctx, prompt, req.Language, req.Style)
	if err != nil {
		return nil, err
	}
	out.Text, out.Cached = text, cached

	if req.WithAudio {
		if u.synthesizer == nil {
			return nil, fmt.Errorf("speech: %w", entity.ErrProviderNotEnabled)
		}
		audio, err := u.synthesizer.Synthesize(ctx, text, req.Language)
		if err != nil {
			return nil, fmt.Errorf("synthesize explanation: %w", err)
		}
		out.Audio = audio
	}
	return out, nil
}

// resolve fills the reference, grounding entry and related entries. An
// explicit or parsed reference wins; otherwise the best search hit is used.
func (u *tafsirUsecase) resolve(ctx context.Context, req AskRequest, question string, out *entity.Explanation) {
	ref := entity.VerseReference{Surah: req.Surah, Ayah: req.Ayah}
	hasRef := ref.Valid()
	if !hasRef {
		ref, hasRef = u.ParseReference(ctx, question)
	}
	if hasRef {
		out.Reference = &ref
		if entry, ok := u.repo.Lookup(ref.Surah, ref.Ayah); ok {
			out.Entry = entry
			out.Grounded = true
		}
		return
	}

	related := u.searchRelated(question)
	if len(related) == 0 {
		return
	}
	out.Related = related
	out.Entry = related[0]
	out.Grounded = true
	r := related[0].Ref()
	out.Reference = &r
}

// searchRelated tries the whole question first, then its longer words.
func (u *tafsirUsecase) searchRelated(question string) []*entity.CommentaryEntry {
	results := u.repo.Search(question)
	if len(results) == 0 {
		for _, word := range strings.Fields(question) {
			word = strings.Trim(word, ".,;:!?\"'()")
			if len([]rune(word)) < _minSearchTermLen {
				continue
			}
			results = append(results, u.repo.Search(word)...)
		}
		results = lo.UniqBy(results, func(e *entity.CommentaryEntry) entity.VerseReference { return e.Ref() })
	}
	if len(results) > _maxRelated {
		results = results[:_maxRelated]
	}
	return results
}

func (u *tafsirUsecase) generate(ctx context.Context, prompt string, language entity.Language, style entity.StyleLevel) (string, bool, error) {
	if u.generator == nil {
		return "", false, fmt.Errorf("completion: %w", entity.ErrProviderNotEnabled)
	}
	key := entity.CacheKey{Prompt: prompt, Language: language, Style: style}
	if u.cache != nil {
		if text, ok := u.cache.Get(ctx, key); ok {
			return text, true, nil
		}
	}
	text, err := u.generator.Generate(ctx, prompt, language, style)
	if err != nil {
		return "", false, fmt.Errorf("generate explanation: %w", err)
	}
	if u.cache != nil {
		u.cache.Set(ctx, key, text)
	}
	return text, false, nil
}

// AskInLanguages runs Ask once per language concurrently. Results keep the
// order of languages; the first failure cancels the rest.
func (u *tafsirUsecase) AskInLanguages(ctx context.Context, req AskRequest, languages []entity.Language) ([]*entity.Explanation, error) {
	languages = lo.Uniq(languages)
	if len(languages) == 0 {
		languages = []entity.Language{req.Language}
	}
	out := make([]*entity.Explanation, len(languages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(_maxFanOutParallel)
	for i, lang := range languages {
		g.Go(func() error {
			r := req
			r.Language = lang
			exp, err := u.Ask(gctx, r)
			if err != nil {
				return fmt.Errorf("%s: %w", lang.CodeOrDefault(), err)
			}
			out[i] = exp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *tafsirUsecase) ListByTopic(_ context.Context, topic string) []*entity.CommentaryEntry {
	return u.repo.ListByTopic(topic)
}

func (u *tafsirUsecase) DailyVerse(_ context.Context) (*entity.CommentaryEntry, error) {
	u.randMu.Lock()
	defer u.randMu.Unlock()
	entry, ok := u.repo.DailyVerse(u.rnd)
	if !ok {
		return nil, entity.ErrEmptyCorpus
	}
	return entry, nil
}

func (u *tafsirUsecase) Stats(_ context.Context) entity.CorpusStats {
	return u.repo.Stats()
}

// CommentaryFilterSchema lists the fields available to list filters.
var CommentaryFilterSchema = filterexpr.Schema{
	"surah":      filterexpr.KindInt,
	"ayah":       filterexpr.KindInt,
	"surah_name": filterexpr.KindString,
	"keywords":   filterexpr.KindStringList,
	"topics":     filterexpr.KindStringList,
}

// CommentaryOrderSchema lists the fields available to order_by.
var CommentaryOrderSchema = filterexpr.OrderSchema{
	Default:  []filterexpr.OrderKey{{Field: "surah"}},
	Fallback: filterexpr.OrderKey{Field: "ayah"},
	Fields:   []string{"surah", "ayah", "surah_name"},
}

var commentaryComparators = map[string]filterexpr.Comparator[*entity.CommentaryEntry]{
	"surah": func(a, b *entity.CommentaryEntry) int { return cmp.Compare(a.SurahNumber, b.SurahNumber) },
	"ayah":  func(a, b *entity.CommentaryEntry) int { return cmp.Compare(a.AyahNumber, b.AyahNumber) },
	"surah_name": func(a, b *entity.CommentaryEntry) int {
		return strings.Compare(strings.ToLower(a.SurahName), strings.ToLower(b.SurahName))
	},
}

func commentaryVars(e *entity.CommentaryEntry) map[string]any {
	return map[string]any{
		"surah":      int64(e.SurahNumber),
		"ayah":       int64(e.AyahNumber),
		"surah_name": e.SurahName,
		"keywords":   lo.Ternary(e.Keywords == nil, []string{}, e.Keywords),
		"topics":     lo.Ternary(e.Topics == nil, []string{}, e.Topics),
	}
}

// List filters, orders and pages the corpus. total counts matches before paging.
func (u *tafsirUsecase) List(_ context.Context, query *repository.ListCommentaryQuery) ([]*entity.CommentaryEntry, int, error) {
	if query == nil {
		query = &repository.ListCommentaryQuery{}
	}
	filter, err := filterexpr.Compile(query.GetFilter(), CommentaryFilterSchema)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}
	order, err := filterexpr.ParseOrderBy(query.GetOrderBy(), CommentaryOrderSchema)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}

	matched, err := filterexpr.Select(filter, u.repo.List(), commentaryVars)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entity.ErrInvalidFilter, err)
	}
	filterexpr.SortBy(matched, order, commentaryComparators)
	return repository.Page(matched, query.Pagination), len(matched), nil
}

// AddEntries validates entries against the index, persists them when a store
// is configured and only then publishes them. The reference parser is
// rescoped to the new corpus before the writer lock is released.
func (u *tafsirUsecase) AddEntries(ctx context.Context, entries []*entity.CommentaryEntry) error {
	u.writeMu.Lock()
	defer u.writeMu.Unlock()

	if err := u.repo.ValidateEntries(entries); err != nil {
		return err
	}
	if u.store != nil {
		if _, err := u.store.Upsert(ctx, entries); err != nil {
			return fmt.Errorf("persist added entries: %w", err)
		}
	}
	if err := u.repo.AddEntries(entries); err != nil {
		return err
	}

	next := u.parsers(u.repo.Surahs())
	u.parserMu.Lock()
	u.parser = next
	u.parserMu.Unlock()
	return nil
}
