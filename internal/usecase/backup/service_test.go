package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"entgo.io/ent/dialect"

	adapterrepo "github.com/eslsoft/tafsirnet/internal/adapter/repository"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/infrastructure/database"
)

func TestServiceExportImportRoundTrip(t *testing.T) {
	requireSQLite(t)
	ctx := context.Background()

	src := openStore(t, "src.db")
	want := seedData(t, ctx, src)

	exporter, err := NewService(src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	var buf bytes.Buffer
	progress := &recordingProgress{}
	if err := exporter.Export(ctx, &buf, WithProgressReporter(progress)); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if progress.started[1] != 2 || progress.started[2] != 1 || progress.finished != 2 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	dst := openStore(t, "dst.db")
	importer, err := NewService(dst, WithBatchSize(1))
	if err != nil {
		t.Fatalf("new importer: %v", err)
	}
	n, err := importer.Import(ctx, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if n != len(want) {
		t.Fatalf("expected %d entries written, got %d", len(want), n)
	}

	got, err := dst.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load dst: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", want, got)
	}
}

func TestServiceExportSurahFilter(t *testing.T) {
	requireSQLite(t)
	ctx := context.Background()
	src := openStore(t, "src.db")
	seedData(t, ctx, src)

	svc, err := NewService(src)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf, WithSurahs([]int{2})); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected meta + 1 record, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"surah_number":2`) {
		t.Fatalf("unexpected record: %s", lines[1])
	}

	if err := svc.Export(ctx, &buf, WithSurahs([]int{115})); err == nil {
		t.Fatalf("expected error for out-of-range surah")
	}
}

func TestServiceImportRejectsBadInput(t *testing.T) {
	requireSQLite(t)
	ctx := context.Background()
	dst := openStore(t, "dst.db")
	svc, err := NewService(dst)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	entry := `{"type":"commentary","payload":{"surah_number":1,"ayah_number":1,"commentary":"x"}}`
	cases := map[string]struct {
		input string
		is    error
	}{
		"missing meta":  {input: entry + "\n"},
		"bad version":   {input: `{"type":"meta","version":99}` + "\n" + entry + "\n"},
		"schema drift":  {input: `{"type":"meta","version":1,"schema_hash":"abc"}` + "\n" + entry + "\n"},
		"duplicate":     {input: `{"type":"meta","version":1}` + "\n" + entry + "\n" + entry + "\n", is: entity.ErrDuplicateVerse},
		"invalid verse": {input: `{"type":"meta","version":1}` + "\n" + `{"type":"commentary","payload":{"surah_number":0,"ayah_number":1}}` + "\n", is: entity.ErrInvalidEntry},
		"bad json":      {input: `{"type":"meta","version":1}` + "\n{nope\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Import(ctx, strings.NewReader(tc.input))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("expected %v, got %v", tc.is, err)
			}
		})
	}

	all, err := dst.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("rejected imports must not write, found %d rows", len(all))
	}
}

func TestServiceImportSurahFilter(t *testing.T) {
	requireSQLite(t)
	ctx := context.Background()
	dst := openStore(t, "dst.db")
	svc, err := NewService(dst)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	input := strings.Join([]string{
		`{"type":"meta","version":1}`,
		`{"type":"commentary","payload":{"surah_number":1,"ayah_number":1,"commentary":"a"}}`,
		`{"type":"commentary","payload":{"surah_number":2,"ayah_number":1,"commentary":"b"}}`,
		`{"type":"future_record","payload":{}}`,
	}, "\n")
	n, err := svc.Import(ctx, strings.NewReader(input), WithImportSurahs([]int{2}))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}

type recordingProgress struct {
	started  map[int]int
	finished int
}

func (p *recordingProgress) StartSurah(surah, total int) {
	if p.started == nil {
		p.started = map[int]int{}
	}
	p.started[surah] = total
}
func (p *recordingProgress) Increment(int, int) {}
func (p *recordingProgress) FinishSurah(int)    { p.finished++ }

func openStore(t *testing.T, name string) *adapterrepo.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), name) + "?_fk=1"
	db, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := adapterrepo.NewSQLStore(db, dialect.SQLite, nil)
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func seedData(t *testing.T, ctx context.Context, store *adapterrepo.SQLStore) []*entity.CommentaryEntry {
	t.Helper()
	entries := []*entity.CommentaryEntry{
		{SurahNumber: 1, SurahName: "Al-Fatiha", SurahNameLocalScript: "الفاتحة", AyahNumber: 1, SourceText: "بِسْمِ اللَّهِ", Translation: "In the name of Allah", Commentary: "Ar-Rahman, Ar-Raheem", Keywords: []string{"bismillah", "mercy"}, Topics: []string{"Mercy"}},
		{SurahNumber: 1, SurahName: "Al-Fatiha", AyahNumber: 6, AyahRange: "6-7", Commentary: "The straight path", Keywords: []string{"guidance"}},
		{SurahNumber: 2, SurahName: "Al-Baqarah", AyahNumber: 2, Commentary: "No doubt", Topics: []string{"Guidance", "Quran"}},
	}
	if _, err := store.Upsert(ctx, entries); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return entries
}

func requireSQLite(t *testing.T) {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Skipf("sqlite driver not available: %v", err)
		return
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("skipping sqlite-dependent tests: %v", err)
	}
}
