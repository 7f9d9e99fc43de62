package reference

import "strings"

// Surah describes the names a surah can be mentioned by.
type Surah struct {
	Number  int
	Name    string
	Arabic  string
	Aliases []string
	Ayahs   int
}

// DefaultCatalog lists the surahs recognised by name. Numbers outside the
// catalog are still accepted in the numeric "S:A" form.
var DefaultCatalog = []Surah{
	{Number: 1, Name: "Al-Fatiha", Arabic: "الفاتحة", Aliases: []string{"fatiha", "fatihah", "al fatiha", "alfatiha", "al-fatihah", "the opening"}, Ayahs: 7},
	{Number: 2, Name: "Al-Baqarah", Arabic: "البقرة", Aliases: []string{"baqarah", "baqara", "al baqarah", "albaqarah", "al-baqara", "the cow"}, Ayahs: 286},
	{Number: 3, Name: "Ale-Imran", Arabic: "آل عمران", Aliases: []string{"ali imran", "al imran", "aal imran", "imran"}, Ayahs: 200},
	{Number: 13, Name: "Ar-Ra'd", Arabic: "الرعد", Aliases: []string{"ar-rad", "ar rad", "ra'd"}, Ayahs: 43},
	{Number: 18, Name: "Al-Kahf", Arabic: "الكهف", Aliases: []string{"kahf", "al kahf", "the cave"}, Ayahs: 110},
	{Number: 19, Name: "Maryam", Arabic: "مريم", Aliases: []string{"mariam"}, Ayahs: 98},
	{Number: 25, Name: "Al-Furqan", Arabic: "الفرقان", Aliases: []string{"furqan", "al furqan"}, Ayahs: 77},
	{Number: 36, Name: "Yasin", Arabic: "يس", Aliases: []string{"ya-sin", "yaseen", "ya sin"}, Ayahs: 83},
	{Number: 55, Name: "Ar-Rahman", Arabic: "الرحمن", Aliases: []string{"surah rahman", "surat ar-rahman"}, Ayahs: 78},
	{Number: 67, Name: "Al-Mulk", Arabic: "الملك", Aliases: []string{"mulk", "al mulk"}, Ayahs: 30},
	{Number: 94, Name: "Ash-Sharh", Arabic: "الشرح", Aliases: []string{"sharh", "ash sharh", "al-inshirah", "inshirah"}, Ayahs: 8},
	{Number: 112, Name: "Al-Ikhlas", Arabic: "الإخلاص", Aliases: []string{"ikhlas", "al ikhlas", "الاخلاص"}, Ayahs: 4},
	{Number: 113, Name: "Al-Falaq", Arabic: "الفلق", Aliases: []string{"falaq", "al falaq"}, Ayahs: 5},
	{Number: 114, Name: "An-Nas", Arabic: "الناس", Aliases: []string{"nas", "an nas", "al-nas"}, Ayahs: 6},
}

// catalogIndex maps every normalised name form to its surah.
type catalogIndex struct {
	byName   map[string]Surah
	byNumber map[int]Surah
	maxWords int
}

func newCatalogIndex(surahs []Surah) catalogIndex {
	idx := catalogIndex{
		byName:   make(map[string]Surah),
		byNumber: make(map[int]Surah, len(surahs)),
	}
	add := func(name string, s Surah) {
		key := normalizeName(name)
		if key == "" {
			return
		}
		if _, exists := idx.byName[key]; exists {
			return
		}
		idx.byName[key] = s
		if n := len(strings.Fields(key)); n > idx.maxWords {
			idx.maxWords = n
		}
	}
	for _, s := range surahs {
		idx.byNumber[s.Number] = s
		add(s.Name, s)
		add(s.Arabic, s)
		for _, alias := range s.Aliases {
			add(alias, s)
		}
	}
	return idx
}

// normalizeName lower-cases, treats hyphens as spaces, drops Arabic
// diacritics and collapses whitespace so "Al-Fatiha", "al fatiha" and
// "AL  FATIHA" compare equal.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "’", "'", "_", " ").Replace(s)
	s = strings.Map(func(r rune) rune {
		if isArabicMark(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// isArabicMark reports harakat, the superscript alef and tatweel.
func isArabicMark(r rune) bool {
	return (r >= 0x064B && r <= 0x065F) || r == 0x0670 || r == 0x0640
}
