package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
	"github.com/eslsoft/tafsirnet/pkg/reference"
)

// minimal in-memory repository; search is keyword-exact then commentary substring
type fakeCommentaryRepo struct {
	entries []*entity.CommentaryEntry
	addErr  error
}

func (f *fakeCommentaryRepo) Lookup(surah, ayah int) (*entity.CommentaryEntry, bool) {
	for _, e := range f.entries {
		if e.SurahNumber == surah && e.AyahNumber == ayah {
			return e, true
		}
	}
	return nil, false
}

func (f *fakeCommentaryRepo) Search(query string) []*entity.CommentaryEntry {
	q := entity.NormalizeKeyword(query)
	out := []*entity.CommentaryEntry{}
	if q == "" {
		return out
	}
	for _, e := range f.entries {
		for _, k := range e.Keywords {
			if k == q {
				out = append(out, e)
				break
			}
		}
	}
	for _, e := range f.entries {
		if strings.Contains(strings.ToLower(e.Commentary), q) && !containsEntry(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func containsEntry(list []*entity.CommentaryEntry, e *entity.CommentaryEntry) bool {
	for _, x := range list {
		if x.Ref() == e.Ref() {
			return true
		}
	}
	return false
}

func (f *fakeCommentaryRepo) ListByTopic(topic string) []*entity.CommentaryEntry {
	return nil
}

func (f *fakeCommentaryRepo) List() []*entity.CommentaryEntry {
	return append([]*entity.CommentaryEntry(nil), f.entries...)
}

func (f *fakeCommentaryRepo) DailyVerse(rnd *rand.Rand) (*entity.CommentaryEntry, bool) {
	if len(f.entries) == 0 {
		return nil, false
	}
	return f.entries[0], true
}

func (f *fakeCommentaryRepo) Stats() entity.CorpusStats {
	return entity.CorpusStats{TotalVerses: len(f.entries), TotalSurahs: len(f.Surahs())}
}

func (f *fakeCommentaryRepo) Surahs() []int {
	seen := map[int]bool{}
	var out []int
	for _, e := range f.entries {
		if !seen[e.SurahNumber] {
			seen[e.SurahNumber] = true
			out = append(out, e.SurahNumber)
		}
	}
	sort.Ints(out)
	return out
}

func (f *fakeCommentaryRepo) ValidateEntries(entries []*entity.CommentaryEntry) error {
	if f.addErr != nil {
		return f.addErr
	}
	for _, e := range entries {
		if _, dup := f.Lookup(e.SurahNumber, e.AyahNumber); dup {
			return entity.ErrDuplicateVerse
		}
	}
	return nil
}

func (f *fakeCommentaryRepo) AddEntries(entries []*entity.CommentaryEntry) error {
	if err := f.ValidateEntries(entries); err != nil {
		return err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, language entity.Language, style entity.StyleLevel) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "answer in " + string(language), nil
}

type fakeSynthesizer struct {
	text string
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string, language entity.Language) ([]byte, error) {
	s.text = text
	return []byte("mp3"), nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[entity.CacheKey]string
}

func (c *mapCache) Get(ctx context.Context, key entity.CacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, key entity.CacheKey, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[entity.CacheKey]string{}
	}
	c.items[key] = text
}

type fakeStore struct {
	upserted  []*entity.CommentaryEntry
	upsertErr error
}

func (s *fakeStore) Migrate(ctx context.Context) error { return nil }
func (s *fakeStore) LoadAll(ctx context.Context) ([]*entity.CommentaryEntry, error) {
	return s.upserted, nil
}
func (s *fakeStore) Upsert(ctx context.Context, entries []*entity.CommentaryEntry) (int, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserted = append(s.upserted, entries...)
	return len(entries), nil
}
func (s *fakeStore) Close() error { return nil }

func sampleEntries() []*entity.CommentaryEntry {
	return []*entity.CommentaryEntry{
		{SurahNumber: 1, SurahName: "Al-Fatiha", AyahNumber: 1, Commentary: "Ar-Rahman and Ar-Raheem", Keywords: []string{"bismillah", "mercy"}},
		{SurahNumber: 1, SurahName: "Al-Fatiha", AyahNumber: 3, Commentary: "Names of mercy", Keywords: []string{"rahman", "mercy"}},
		{SurahNumber: 2, SurahName: "Al-Baqarah", AyahNumber: 1, Commentary: "Disjointed letters", Keywords: []string{"muqattaat"}},
		{SurahNumber: 2, SurahName: "Al-Baqarah", AyahNumber: 2, Commentary: "Guidance for the pious", Keywords: []string{"taqwa"}},
		{SurahNumber: 2, SurahName: "Al-Baqarah", AyahNumber: 3, Commentary: "Belief in the unseen and patience in prayer", Keywords: []string{"unseen"}},
	}
}

func newTestTafsir(t *testing.T, deps TafsirDeps) TafsirUsecase {
	t.Helper()
	if deps.Repo == nil {
		deps.Repo = &fakeCommentaryRepo{entries: sampleEntries()}
	}
	uc, err := NewTafsirUsecase(deps)
	if err != nil {
		t.Fatalf("NewTafsirUsecase: %v", err)
	}
	return uc
}

func TestAsk_GroundedOnParsedReference(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen})

	exp, err := uc.Ask(context.Background(), AskRequest{Question: "Explain Al-Fatiha 1 please"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !exp.Grounded || exp.Entry == nil || exp.Entry.Ref() != (entity.VerseReference{Surah: 1, Ayah: 1}) {
		t.Fatalf("expected grounding on 1:1, got %+v", exp)
	}
	if !strings.Contains(exp.Prompt, "Ar-Rahman and Ar-Raheem") {
		t.Fatalf("commentary not embedded in prompt:\n%s", exp.Prompt)
	}
	if exp.Text != "answer in english" || exp.Language != entity.LanguageEnglish || exp.Style != entity.StyleSimple {
		t.Fatalf("unexpected defaults: %+v", exp)
	}
}

func TestAsk_MissingVerseFallsBackToGeneralPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen})

	exp, err := uc.Ask(context.Background(), AskRequest{Question: "What about 2:5?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if exp.Grounded || exp.Entry != nil {
		t.Fatalf("expected general answer, got %+v", exp)
	}
	if exp.Reference == nil || *exp.Reference != (entity.VerseReference{Surah: 2, Ayah: 5}) {
		t.Fatalf("expected parsed reference 2:5, got %+v", exp.Reference)
	}
	if strings.Contains(exp.Prompt, "Authentic Source") {
		t.Fatalf("general prompt should not cite a source:\n%s", exp.Prompt)
	}
	if !strings.Contains(exp.Prompt, "Explain Quran 2:5") {
		t.Fatalf("general prompt should name the requested verse:\n%s", exp.Prompt)
	}
}

func TestAsk_UngroundedVersesDoNotShareCache(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen, Cache: &mapCache{}})
	ctx := context.Background()

	first, err := uc.Ask(ctx, AskRequest{Surah: 2, Ayah: 5})
	if err != nil {
		t.Fatalf("Ask 2:5: %v", err)
	}
	second, err := uc.Ask(ctx, AskRequest{Surah: 3, Ayah: 7})
	if err != nil {
		t.Fatalf("Ask 3:7: %v", err)
	}
	if first.Grounded || second.Grounded {
		t.Fatalf("neither verse is in the corpus")
	}
	if first.Prompt == second.Prompt {
		t.Fatalf("different verses produced the same prompt:\n%s", first.Prompt)
	}
	if !strings.Contains(second.Prompt, "Explain Quran 3:7") {
		t.Fatalf("prompt should name 3:7:\n%s", second.Prompt)
	}
	if second.Cached || gen.calls != 2 {
		t.Fatalf("3:7 must not be served from the 2:5 cache entry (cached=%v calls=%d)", second.Cached, gen.calls)
	}
}

func TestAsk_Reflection(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen})
	ctx := context.Background()

	exp, err := uc.Ask(ctx, AskRequest{Surah: 1, Ayah: 1, Kind: entity.KindReflection})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if exp.Kind != entity.KindReflection || !exp.Grounded {
		t.Fatalf("expected grounded reflection, got %+v", exp)
	}
	for _, want := range []string{"Life Lesson", "Journaling Questions", "Ar-Rahman and Ar-Raheem", "Quran 1:1"} {
		if !strings.Contains(exp.Prompt, want) {
			t.Fatalf("reflection prompt missing %q:\n%s", want, exp.Prompt)
		}
	}

	daily, err := uc.Ask(ctx, AskRequest{Kind: entity.KindReflection})
	if err != nil {
		t.Fatalf("daily reflection: %v", err)
	}
	if daily.Reference == nil || *daily.Reference != (entity.VerseReference{Surah: 1, Ayah: 1}) {
		t.Fatalf("expected the verse of the day, got %+v", daily.Reference)
	}

	plain, err := uc.Ask(ctx, AskRequest{Surah: 1, Ayah: 1})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if plain.Kind != entity.KindExplanation || plain.Prompt == exp.Prompt {
		t.Fatalf("explanation and reflection must differ, got kind %q", plain.Kind)
	}
}

func TestAsk_ExplicitReference(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{}})
	exp, err := uc.Ask(context.Background(), AskRequest{Surah: 2, Ayah: 2})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if exp.Entry == nil || exp.Entry.AyahNumber != 2 || exp.Entry.SurahNumber != 2 {
		t.Fatalf("expected 2:2, got %+v", exp.Entry)
	}
}

func TestAsk_SearchFallback(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{}})
	exp, err := uc.Ask(context.Background(), AskRequest{Question: "Where is patience discussed?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !exp.Grounded || len(exp.Related) != 1 || exp.Entry.Ref() != (entity.VerseReference{Surah: 2, Ayah: 3}) {
		t.Fatalf("expected search grounding on 2:3, got %+v", exp)
	}
}

func TestAsk_Errors(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{})
	if _, err := uc.Ask(context.Background(), AskRequest{Question: "   "}); !errors.Is(err, entity.ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := uc.Ask(context.Background(), AskRequest{Question: "1:1"}); !errors.Is(err, entity.ErrProviderNotEnabled) {
		t.Fatalf("expected ErrProviderNotEnabled, got %v", err)
	}

	failing := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{err: entity.ErrProviderFailure}})
	if _, err := failing.Ask(context.Background(), AskRequest{Question: "1:1"}); !errors.Is(err, entity.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}

	noSpeech := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{}})
	if _, err := noSpeech.Ask(context.Background(), AskRequest{Question: "1:1", WithAudio: true}); !errors.Is(err, entity.ErrProviderNotEnabled) {
		t.Fatalf("expected ErrProviderNotEnabled for speech, got %v", err)
	}
}

func TestAsk_UsesCache(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen, Cache: &mapCache{}})
	req := AskRequest{Question: "1:3", Language: entity.LanguageTurkish}

	first, err := uc.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	second, err := uc.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("expected miss then hit, got %v/%v", first.Cached, second.Cached)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls)
	}
	if second.Text != first.Text {
		t.Fatalf("cached text differs: %q vs %q", second.Text, first.Text)
	}
}

func TestAsk_WithAudio(t *testing.T) {
	synth := &fakeSynthesizer{}
	uc := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{}, Synthesizer: synth})
	exp, err := uc.Ask(context.Background(), AskRequest{Question: "1:1", WithAudio: true})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if string(exp.Audio) != "mp3" || synth.text != exp.Text {
		t.Fatalf("unexpected audio result: %+v, synth text %q", exp, synth.text)
	}
}

func TestAskInLanguages_KeepsOrder(t *testing.T) {
	gen := &fakeGenerator{}
	uc := newTestTafsir(t, TafsirDeps{Generator: gen})
	langs := []entity.Language{entity.LanguageArabic, entity.LanguageUrdu, entity.LanguageFrench, entity.LanguageArabic}

	out, err := uc.AskInLanguages(context.Background(), AskRequest{Question: "1:1"}, langs)
	if err != nil {
		t.Fatalf("AskInLanguages: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected duplicates removed, got %d results", len(out))
	}
	for i, want := range []entity.Language{entity.LanguageArabic, entity.LanguageUrdu, entity.LanguageFrench} {
		if out[i].Language != want || out[i].Text != "answer in "+string(want) {
			t.Fatalf("result %d = %+v, want language %s", i, out[i], want)
		}
	}
}

func TestAskInLanguages_PropagatesFailure(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{Generator: &fakeGenerator{err: entity.ErrProviderFailure}})
	_, err := uc.AskInLanguages(context.Background(), AskRequest{Question: "1:1"}, []entity.Language{entity.LanguageEnglish, entity.LanguageArabic})
	if !errors.Is(err, entity.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestList_FilterOrderPage(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{})
	query := &repository.ListCommentaryQuery{
		Pagination:  repository.Pagination{PageNo: 1, PageSize: 2},
		FilterOrder: repository.FilterOrder{Filter: "surah == 2", OrderBy: "ayah desc"},
	}
	items, total, err := uc.List(context.Background(), query)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 3 total and 2 paged, got %d/%d", total, len(items))
	}
	if items[0].AyahNumber != 3 || items[1].AyahNumber != 2 {
		t.Fatalf("unexpected order: %d, %d", items[0].AyahNumber, items[1].AyahNumber)
	}

	items, _, err = uc.List(context.Background(), &repository.ListCommentaryQuery{FilterOrder: repository.FilterOrder{Filter: "'mercy' in keywords"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two mercy entries, got %d", len(items))
	}
}

func TestList_InvalidFilter(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{})
	for _, q := range []repository.FilterOrder{{Filter: "surah =="}, {OrderBy: "juz desc"}} {
		_, _, err := uc.List(context.Background(), &repository.ListCommentaryQuery{FilterOrder: q})
		if !errors.Is(err, entity.ErrInvalidFilter) {
			t.Fatalf("expected ErrInvalidFilter for %+v, got %v", q, err)
		}
	}
}

func TestAddEntries_RescopesParserAndPersists(t *testing.T) {
	store := &fakeStore{}
	uc := newTestTafsir(t, TafsirDeps{Store: store})
	ctx := context.Background()

	if _, ok := uc.ParseReference(ctx, "first verse of al-ikhlas"); ok {
		t.Fatalf("al-ikhlas is not in the corpus yet")
	}
	added := []*entity.CommentaryEntry{{SurahNumber: 112, SurahName: "Al-Ikhlas", AyahNumber: 1, Commentary: "Oneness"}}
	if err := uc.AddEntries(ctx, added); err != nil {
		t.Fatalf("AddEntries: %v", err)
	}
	ref, ok := uc.ParseReference(ctx, "first verse of al-ikhlas")
	if !ok || ref != (entity.VerseReference{Surah: 112, Ayah: 1}) {
		t.Fatalf("expected 112:1 after rescope, got %+v %v", ref, ok)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected entry persisted, got %d", len(store.upserted))
	}
}

func TestAddEntries_RejectedBatchNotPersisted(t *testing.T) {
	store := &fakeStore{}
	repo := &fakeCommentaryRepo{entries: sampleEntries(), addErr: entity.ErrDuplicateVerse}
	uc := newTestTafsir(t, TafsirDeps{Repo: repo, Store: store})

	err := uc.AddEntries(context.Background(), []*entity.CommentaryEntry{{SurahNumber: 1, AyahNumber: 1}})
	if !errors.Is(err, entity.ErrDuplicateVerse) {
		t.Fatalf("expected ErrDuplicateVerse, got %v", err)
	}
	if len(store.upserted) != 0 {
		t.Fatalf("rejected batch must not be persisted")
	}
}

func TestAddEntries_StoreFailureLeavesIndexUntouched(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("disk full")}
	uc := newTestTafsir(t, TafsirDeps{Store: store})
	ctx := context.Background()
	added := []*entity.CommentaryEntry{{SurahNumber: 112, SurahName: "Al-Ikhlas", AyahNumber: 1, Commentary: "Oneness"}}

	if err := uc.AddEntries(ctx, added); err == nil || errors.Is(err, entity.ErrDuplicateVerse) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if _, ok := uc.Lookup(ctx, 112, 1); ok {
		t.Fatalf("unpersisted entry must not be published")
	}
	if _, ok := uc.ParseReference(ctx, "first verse of al-ikhlas"); ok {
		t.Fatalf("parser must not be rescoped for an unpersisted batch")
	}

	store.upsertErr = nil
	if err := uc.AddEntries(ctx, added); err != nil {
		t.Fatalf("retry after store recovery: %v", err)
	}
	if _, ok := uc.Lookup(ctx, 112, 1); !ok {
		t.Fatalf("expected 112:1 after retry")
	}
}

type scopeRecorder struct {
	scope []int
}

func (s *scopeRecorder) Parse(string) (reference.Ref, bool) { return reference.Ref{}, false }

func TestAddEntries_ConcurrentAppendsKeepParserCurrent(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{Parsers: func(scope []int) ReferenceParser {
		return &scopeRecorder{scope: scope}
	}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for surah := 100; surah < 114; surah++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := &entity.CommentaryEntry{SurahNumber: surah, SurahName: "S", AyahNumber: 1, Commentary: "c"}
			if err := uc.AddEntries(ctx, []*entity.CommentaryEntry{entry}); err != nil {
				t.Errorf("AddEntries %d: %v", surah, err)
			}
		}()
	}
	wg.Wait()

	impl := uc.(*tafsirUsecase)
	impl.parserMu.RLock()
	got := impl.parser.(*scopeRecorder).scope
	impl.parserMu.RUnlock()
	if want := impl.repo.Surahs(); len(got) != len(want) {
		t.Fatalf("parser scope %v is stale, corpus has %v", got, want)
	}
}

func TestDailyVerse(t *testing.T) {
	uc := newTestTafsir(t, TafsirDeps{})
	if _, err := uc.DailyVerse(context.Background()); err != nil {
		t.Fatalf("DailyVerse: %v", err)
	}
	empty := newTestTafsir(t, TafsirDeps{Repo: &fakeCommentaryRepo{}})
	if _, err := empty.DailyVerse(context.Background()); !errors.Is(err, entity.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}
