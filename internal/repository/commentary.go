package repository

import (
	"context"
	"math/rand/v2"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

// CommentaryRepository answers verse lookups and searches over the corpus.
// Misses are reported as (nil, false) or an empty slice, never as errors.
type CommentaryRepository interface {
	Lookup(surah, ayah int) (*entity.CommentaryEntry, bool)
	Search(query string) []*entity.CommentaryEntry
	ListByTopic(topic string) []*entity.CommentaryEntry
	List() []*entity.CommentaryEntry
	DailyVerse(rnd *rand.Rand) (*entity.CommentaryEntry, bool)
	Stats() entity.CorpusStats
	Surahs() []int
	// ValidateEntries reports the error AddEntries would return without
	// publishing anything.
	ValidateEntries(entries []*entity.CommentaryEntry) error
	AddEntries(entries []*entity.CommentaryEntry) error
}

// CorpusStore persists the corpus between process runs.
type CorpusStore interface {
	Migrate(ctx context.Context) error
	LoadAll(ctx context.Context) ([]*entity.CommentaryEntry, error)
	Upsert(ctx context.Context, entries []*entity.CommentaryEntry) (int, error)
	Close() error
}
