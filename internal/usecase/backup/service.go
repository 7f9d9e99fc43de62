package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/zeebo/blake3"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1

	recordMeta       = "meta"
	recordCommentary = "commentary"
)

var errNoSurahsSelected = errors.New("backup: no surahs selected")

type ProgressReporter interface {
	StartSurah(surah int, total int)
	Increment(surah int, delta int)
	FinishSurah(surah int)
}

type noopProgress struct{}

func (noopProgress) StartSurah(int, int) {}
func (noopProgress) Increment(int, int)  {}
func (noopProgress) FinishSurah(int)     {}

// Service exports the corpus store to NDJSON and imports it back.
type Service struct {
	store      repository.CorpusStore
	batchSize  int
	schemaHash string
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to the provided corpus store.
func NewService(store repository.CorpusStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("backup: store is required")
	}
	svc := &Service{
		store:      store,
		batchSize:  defaultBatchSize,
		schemaHash: computeSchemaHash(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	surahs   []int
	reporter ProgressReporter
}

// WithSurahs restricts export to the provided surah numbers.
func WithSurahs(surahs []int) ExportOption {
	return func(cfg *exportConfig) {
		if len(surahs) == 0 {
			return
		}
		cfg.surahs = append([]int{}, surahs...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	surahs []int
}

// WithImportSurahs restricts import to the provided surah numbers.
func WithImportSurahs(surahs []int) ImportOption {
	return func(cfg *importConfig) {
		if len(surahs) == 0 {
			return
		}
		cfg.surahs = append([]int{}, surahs...)
	}
}

type record struct {
	Type       string                  `json:"type"`
	Version    int                     `json:"version,omitempty"`
	ExportedAt *time.Time              `json:"exported_at,omitempty"`
	SchemaHash string                  `json:"schema_hash,omitempty"`
	Surahs     []int                   `json:"surahs,omitempty"`
	RowCounts  map[int]int             `json:"row_counts,omitempty"`
	Payload    *entity.CommentaryEntry `json:"payload,omitempty"`
}

type rawRecord struct {
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	SchemaHash string          `json:"schema_hash"`
	Payload    json.RawMessage `json:"payload"`
}

// Export writes a meta record followed by one record per entry, ordered by
// surah and ayah.
func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}
	filter, err := surahFilter(cfg.surahs)
	if err != nil {
		return err
	}

	entries, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if filter != nil {
		entries = lo.Filter(entries, func(e *entity.CommentaryEntry, _ int) bool {
			_, ok := filter[e.SurahNumber]
			return ok
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].SurahNumber != entries[j].SurahNumber {
			return entries[i].SurahNumber < entries[j].SurahNumber
		}
		return entries[i].AyahNumber < entries[j].AyahNumber
	})

	grouped := lo.GroupBy(entries, func(e *entity.CommentaryEntry) int { return e.SurahNumber })
	surahs := lo.Keys(grouped)
	sort.Ints(surahs)
	counts := lo.MapValues(grouped, func(list []*entity.CommentaryEntry, _ int) int { return len(list) })

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := time.Now().UTC()
	meta := record{
		Type:       recordMeta,
		Version:    formatVersion,
		ExportedAt: &now,
		SchemaHash: s.schemaHash,
		Surahs:     surahs,
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, surah := range surahs {
		if err := ctx.Err(); err != nil {
			return err
		}
		reporter.StartSurah(surah, counts[surah])
		for _, e := range grouped[surah] {
			if err := writeRecord(writer, record{Type: recordCommentary, Payload: e}); err != nil {
				return err
			}
			reporter.Increment(surah, 1)
		}
		reporter.FinishSurah(surah)
	}
	return writer.Flush()
}

// Import reads an export and upserts its entries into the store. Nothing is
// written unless the whole input decodes and validates. It returns the number
// of entries written.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (int, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	filter, err := surahFilter(cfg.surahs)
	if err != nil {
		return 0, err
	}

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		meta     rawRecord
		entries  []*entity.CommentaryEntry
		seen     = make(map[entity.VerseReference]struct{})
	)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return 0, fmt.Errorf("decode record on line %d: %w", lineNo, err)
			}

			switch rec.Type {
			case recordMeta:
				metaSeen = true
				meta = rec
			case recordCommentary:
				if len(rec.Payload) == 0 {
					return 0, fmt.Errorf("backup: missing payload on line %d", lineNo)
				}
				var e entity.CommentaryEntry
				if err := json.Unmarshal(rec.Payload, &e); err != nil {
					return 0, fmt.Errorf("decode payload on line %d: %w", lineNo, err)
				}
				if filter != nil {
					if _, ok := filter[e.SurahNumber]; !ok {
						break
					}
				}
				if !e.Ref().Valid() {
					return 0, fmt.Errorf("%w: line %d references %s", entity.ErrInvalidEntry, lineNo, e.Ref())
				}
				if _, dup := seen[e.Ref()]; dup {
					return 0, fmt.Errorf("%w: %s repeated on line %d", entity.ErrDuplicateVerse, e.Ref(), lineNo)
				}
				seen[e.Ref()] = struct{}{}
				entries = append(entries, &e)
			default:
				// Unknown record types come from newer writers; skip them.
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return 0, errors.New("backup: missing meta record")
	}
	if meta.Version != formatVersion {
		return 0, fmt.Errorf("backup: unsupported format version %d", meta.Version)
	}
	if meta.SchemaHash != "" && meta.SchemaHash != s.schemaHash {
		return 0, fmt.Errorf("backup: schema hash %s does not match %s", meta.SchemaHash, s.schemaHash)
	}

	written := 0
	for _, batch := range lo.Chunk(entries, s.batchSize) {
		n, err := s.store.Upsert(ctx, batch)
		if err != nil {
			return written, fmt.Errorf("upsert batch: %w", err)
		}
		written += n
	}
	return written, nil
}

func surahFilter(surahs []int) (map[int]struct{}, error) {
	if surahs == nil {
		return nil, nil
	}
	set := make(map[int]struct{}, len(surahs))
	for _, n := range surahs {
		if n < entity.MinSurah || n > entity.MaxSurah {
			return nil, fmt.Errorf("backup: unsupported surah %d", n)
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errNoSurahsSelected
	}
	return set, nil
}

// computeSchemaHash fingerprints the JSON field set of CommentaryEntry so
// imports from an incompatible layout are refused.
func computeSchemaHash() string {
	t := reflect.TypeOf(entity.CommentaryEntry{})
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, fmt.Sprintf("%s:%s", name, f.Type))
	}
	sort.Strings(fields)
	sum := blake3.Sum256([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(sum[:])
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}
	return nil
}
