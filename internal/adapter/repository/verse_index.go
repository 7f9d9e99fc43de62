package repository

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
)

var _ repository.CommentaryRepository = (*VerseIndex)(nil)

// VerseIndex is the in-memory commentary index. Readers work on an immutable
// snapshot; AddEntries builds a new snapshot and swaps it in.
type VerseIndex struct {
	mu      sync.Mutex // serialises writers
	current atomic.Pointer[indexSnapshot]
}

type indexSnapshot struct {
	entries   []*entity.CommentaryEntry
	byRef     map[entity.VerseReference]*entity.CommentaryEntry
	byKeyword map[string][]*entity.CommentaryEntry
	haystacks []searchText // parallel to entries
}

type searchText struct {
	commentary  string
	translation string
}

// NewVerseIndex builds an index over the provided entries. It fails with
// entity.ErrDuplicateVerse or entity.ErrInvalidEntry on a bad seed.
func NewVerseIndex(entries []*entity.CommentaryEntry) (*VerseIndex, error) {
	snap, err := buildSnapshot(nil, entries)
	if err != nil {
		return nil, err
	}
	idx := &VerseIndex{}
	idx.current.Store(snap)
	return idx, nil
}

// Lookup returns the entry for surah:ayah. A miss is the normal
// "no authentic commentary available" case.
func (x *VerseIndex) Lookup(surah, ayah int) (*entity.CommentaryEntry, bool) {
	e, ok := x.load().byRef[entity.VerseReference{Surah: surah, Ayah: ayah}]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Search returns exact keyword hits first, then entries whose commentary or
// translation contains the query. Results are unique by verse and keep
// insertion order inside each group.
func (x *VerseIndex) Search(query string) []*entity.CommentaryEntry {
	q := entity.NormalizeKeyword(query)
	if q == "" {
		return []*entity.CommentaryEntry{}
	}
	snap := x.load()

	seen := make(map[entity.VerseReference]struct{})
	out := make([]*entity.CommentaryEntry, 0)
	add := func(e *entity.CommentaryEntry) {
		ref := e.Ref()
		if _, dup := seen[ref]; dup {
			return
		}
		seen[ref] = struct{}{}
		out = append(out, e.Clone())
	}

	for _, e := range snap.byKeyword[q] {
		add(e)
	}
	for i, e := range snap.entries {
		hay := snap.haystacks[i]
		if strings.Contains(hay.commentary, q) || strings.Contains(hay.translation, q) {
			add(e)
		}
	}
	return out
}

// ListByTopic returns entries with at least one topic containing topic.
func (x *VerseIndex) ListByTopic(topic string) []*entity.CommentaryEntry {
	needle := entity.NormalizeKeyword(topic)
	if needle == "" {
		return []*entity.CommentaryEntry{}
	}
	matched := lo.Filter(x.load().entries, func(e *entity.CommentaryEntry, _ int) bool {
		return lo.ContainsBy(e.Topics, func(t string) bool {
			return strings.Contains(strings.ToLower(t), needle)
		})
	})
	return cloneAll(matched)
}

// List returns every entry in insertion order.
func (x *VerseIndex) List() []*entity.CommentaryEntry {
	return cloneAll(x.load().entries)
}

// DailyVerse picks one entry at random. A nil rnd uses the global source.
func (x *VerseIndex) DailyVerse(rnd *rand.Rand) (*entity.CommentaryEntry, bool) {
	entries := x.load().entries
	if len(entries) == 0 {
		return nil, false
	}
	var i int
	if rnd != nil {
		i = rnd.IntN(len(entries))
	} else {
		i = rand.IntN(len(entries))
	}
	return entries[i].Clone(), true
}

func (x *VerseIndex) Stats() entity.CorpusStats {
	entries := x.load().entries
	topics := lo.Uniq(lo.FlatMap(entries, func(e *entity.CommentaryEntry, _ int) []string {
		return e.Topics
	}))
	return entity.CorpusStats{
		TotalVerses: len(entries),
		TotalSurahs: len(x.Surahs()),
		Topics:      len(topics),
	}
}

// Surahs returns the distinct surah numbers present, ascending.
func (x *VerseIndex) Surahs() []int {
	surahs := lo.Uniq(lo.Map(x.load().entries, func(e *entity.CommentaryEntry, _ int) int {
		return e.SurahNumber
	}))
	sort.Ints(surahs)
	return surahs
}

// ValidateEntries checks entries against the current snapshot.
func (x *VerseIndex) ValidateEntries(entries []*entity.CommentaryEntry) error {
	_, err := buildSnapshot(x.load(), entries)
	return err
}

// AddEntries merges entries into the index atomically: either every entry is
// published or, on any validation or uniqueness failure, none is.
func (x *VerseIndex) AddEntries(entries []*entity.CommentaryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	next, err := buildSnapshot(x.load(), entries)
	if err != nil {
		return err
	}
	x.current.Store(next)
	return nil
}

func (x *VerseIndex) load() *indexSnapshot {
	if snap := x.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

var emptySnapshot = &indexSnapshot{
	byRef:     map[entity.VerseReference]*entity.CommentaryEntry{},
	byKeyword: map[string][]*entity.CommentaryEntry{},
}

// buildSnapshot copies base and appends the new entries. base is never
// modified.
func buildSnapshot(base *indexSnapshot, added []*entity.CommentaryEntry) (*indexSnapshot, error) {
	if base == nil {
		base = emptySnapshot
	}
	total := len(base.entries) + len(added)
	next := &indexSnapshot{
		entries:   make([]*entity.CommentaryEntry, 0, total),
		byRef:     make(map[entity.VerseReference]*entity.CommentaryEntry, total),
		byKeyword: make(map[string][]*entity.CommentaryEntry, len(base.byKeyword)),
		haystacks: make([]searchText, 0, total),
	}
	for _, e := range base.entries {
		next.insert(e)
	}
	for i, raw := range added {
		e, err := normalizeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := next.byRef[e.Ref()]; dup {
			return nil, fmt.Errorf("%w: %s", entity.ErrDuplicateVerse, e.Ref())
		}
		next.insert(e)
	}
	return next, nil
}

func (s *indexSnapshot) insert(e *entity.CommentaryEntry) {
	s.entries = append(s.entries, e)
	s.byRef[e.Ref()] = e
	for _, kw := range e.Keywords {
		s.byKeyword[kw] = append(s.byKeyword[kw], e)
	}
	s.haystacks = append(s.haystacks, searchText{
		commentary:  strings.ToLower(e.Commentary),
		translation: strings.ToLower(e.Translation),
	})
}

// normalizeEntry validates raw and returns an index-owned copy with
// lower-cased keywords and trimmed topics.
func normalizeEntry(raw *entity.CommentaryEntry) (*entity.CommentaryEntry, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil entry", entity.ErrInvalidEntry)
	}
	if !raw.Ref().Valid() {
		return nil, fmt.Errorf("%w: verse %s out of range", entity.ErrInvalidEntry, raw.Ref())
	}
	out := raw.Clone()
	out.SurahName = strings.TrimSpace(out.SurahName)
	out.SurahNameLocalScript = strings.TrimSpace(out.SurahNameLocalScript)
	out.AyahRange = strings.TrimSpace(out.AyahRange)
	out.Keywords = normalizeLowerStrings(out.Keywords)
	out.Topics = normalizeTrimmedStrings(out.Topics)
	return out, nil
}

func cloneAll(in []*entity.CommentaryEntry) []*entity.CommentaryEntry {
	return lo.Map(in, func(e *entity.CommentaryEntry, _ int) *entity.CommentaryEntry {
		return e.Clone()
	})
}
