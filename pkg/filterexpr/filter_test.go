package filterexpr

import (
	"cmp"
	"errors"
	"strings"
	"testing"
)

var verseSchema = Schema{
	"surah":      KindInt,
	"ayah":       KindInt,
	"surah_name": KindString,
	"keywords":   KindStringList,
}

type verse struct {
	surah    int
	ayah     int
	name     string
	keywords []string
}

func verseVars(v verse) map[string]any {
	return map[string]any{
		"surah":      int64(v.surah),
		"ayah":       int64(v.ayah),
		"surah_name": v.name,
		"keywords":   v.keywords,
	}
}

func TestCompileAndMatch(t *testing.T) {
	f, err := Compile("surah == 1 && ayah <= 3 && 'mercy' in keywords", verseSchema)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	ok, err := f.Match(verseVars(verse{surah: 1, ayah: 3, name: "Al-Fatiha", keywords: []string{"rahman", "mercy"}}))
	if err != nil || !ok {
		t.Fatalf("expected match, got %v err=%v", ok, err)
	}
	ok, err = f.Match(verseVars(verse{surah: 1, ayah: 4, name: "Al-Fatiha", keywords: []string{"mercy"}}))
	if err != nil || ok {
		t.Fatalf("expected no match, got %v err=%v", ok, err)
	}
}

func TestCompileStringFunctions(t *testing.T) {
	f, err := Compile("surah_name.startsWith('Al-B')", verseSchema)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	ok, err := f.Match(verseVars(verse{surah: 2, ayah: 1, name: "Al-Baqarah"}))
	if err != nil || !ok {
		t.Fatalf("expected match, got %v err=%v", ok, err)
	}
}

func TestCompileEmptyMatchesAll(t *testing.T) {
	f, err := Compile("   ", verseSchema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != nil {
		t.Fatalf("expected nil filter")
	}
	ok, err := f.Match(nil)
	if err != nil || !ok {
		t.Fatalf("nil filter should match, got %v err=%v", ok, err)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":        "surah ==",
		"unknown field": "juz == 1",
		"not boolean":   "surah + 1",
		"type mismatch": "surah_name == 3",
	}
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(expr, verseSchema)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Compile(%q) error = %v, want ErrInvalid", expr, err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	items := []verse{
		{surah: 1, ayah: 1, name: "Al-Fatiha"},
		{surah: 2, ayah: 1, name: "Al-Baqarah"},
		{surah: 2, ayah: 2, name: "Al-Baqarah"},
	}
	f, err := Compile("surah == 2", verseSchema)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	got, err := Select(f, items, verseVars)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(got) != 2 || got[0].ayah != 1 || got[1].ayah != 2 {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

var verseOrder = OrderSchema{
	Default:  []OrderKey{{Field: "surah"}},
	Fallback: OrderKey{Field: "ayah"},
	Fields:   []string{"surah", "ayah", "surah_name"},
}

func TestParseOrderBy(t *testing.T) {
	keys, err := ParseOrderBy("", verseOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0].Field != "surah" || keys[1].Field != "ayah" {
		t.Fatalf("unexpected default keys: %+v", keys)
	}

	keys, err = ParseOrderBy("surah desc, ayah asc", verseOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || !keys[0].Desc || keys[1].Desc {
		t.Fatalf("unexpected keys: %+v", keys)
	}
}

func TestParseOrderByErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "juz", want: "cannot be used for ordering"},
		{raw: "surah sideways", want: "invalid direction"},
		{raw: "surah asc extra", want: "invalid order segment"},
		{raw: "surah, surah desc", want: "duplicate order key"},
	}
	for _, tc := range cases {
		_, err := ParseOrderBy(tc.raw, verseOrder)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("ParseOrderBy(%q) error = %v, want %q", tc.raw, err, tc.want)
		}
	}
}

func TestSortBy(t *testing.T) {
	items := []verse{
		{surah: 1, ayah: 2},
		{surah: 2, ayah: 1},
		{surah: 1, ayah: 1},
	}
	keys, err := ParseOrderBy("surah desc", verseOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	SortBy(items, keys, map[string]Comparator[verse]{
		"surah": func(a, b verse) int { return cmp.Compare(a.surah, b.surah) },
		"ayah":  func(a, b verse) int { return cmp.Compare(a.ayah, b.ayah) },
	})
	want := []verse{{surah: 2, ayah: 1}, {surah: 1, ayah: 1}, {surah: 1, ayah: 2}}
	for i := range want {
		if items[i].surah != want[i].surah || items[i].ayah != want[i].ayah {
			t.Fatalf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}
