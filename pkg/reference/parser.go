// Package reference recognises Quran verse references in free-text messages.
//
// Every recognised pattern produces a Candidate with a confidence; Parse
// returns the highest-confidence candidate. Supported shapes, strongest first:
//   - "2:255", "٢:٢٥٥" (numeric surah:ayah)
//   - "Al-Fatiha 1", "الفاتحة 1", "surah baqarah verse 3" (named surah + number)
//   - "verse 3 of al-baqarah" (number + named surah)
//   - "Bismillah", "Basmalah" (fixed aliases)
//   - "first verse of al-fatiha" (ordinal + named surah, scoped surahs only)
//   - "mercy", "straight path" (topic hints, scoped surahs only)
package reference

import (
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Ref is a parsed surah:ayah pair.
type Ref struct {
	Surah int
	Ayah  int
}

// Pattern names the rule that produced a candidate.
type Pattern string

const (
	PatternNumeric      Pattern = "numeric"
	PatternNamedNumber  Pattern = "named_number"
	PatternNumberOfName Pattern = "number_of_name"
	PatternAlias        Pattern = "alias"
	PatternOrdinal      Pattern = "ordinal"
	PatternTopic        Pattern = "topic"
)

const (
	confidenceNumeric      = 100
	confidenceNamedNumber  = 90
	confidenceNumberOfName = 85
	confidenceAlias        = 80
	confidenceOrdinal      = 60
	confidenceTopic        = 40
	maxSurah               = 114
)

// Candidate is one possible interpretation of a message.
type Candidate struct {
	Ref        Ref
	Pattern    Pattern
	Confidence int
	Position   int // token offset where the match starts
}

//nolint:govet // participle grammar tags are not standard struct tags
type message struct {
	Parts []*part `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type part struct {
	Numeric *numericRef `  @@`
	Int     *string     `| @Int`
	Word    *string     `| @Word`
	Other   *string     `| @( Colon | Punct )`
}

//nolint:govet // participle grammar tags are not standard struct tags
type numericRef struct {
	Surah string `@Int Colon`
	Ayah  string `@Int`
}

var messageLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Colon", Pattern: `[:：]`},
	{Name: "Word", Pattern: `[\p{L}\p{M}][\p{L}\p{M}'’\-]*`},
	{Name: "Punct", Pattern: `[^\s]`},
})

var messageParser = participle.MustBuild[message](
	participle.Lexer(messageLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)

type tokenKind int

const (
	tokenOther tokenKind = iota
	tokenNumeric
	tokenInt
	tokenWord
)

type token struct {
	kind  tokenKind
	text  string // normalised for words
	value int
	ref   Ref
	valid bool
}

// Parser resolves verse references. A zero Parser is not usable; build one
// with NewParser.
type Parser struct {
	catalog  catalogIndex
	aliases  []phraseRule
	ordinals map[string]int
	hints    []Hint
	scope    map[int]struct{}
}

type phraseRule struct {
	words []string
	ref   Ref
}

// Option configures a Parser.
type Option func(*Parser)

// WithCatalog replaces the named-surah catalog.
func WithCatalog(surahs []Surah) Option {
	return func(p *Parser) { p.catalog = newCatalogIndex(surahs) }
}

// WithHints replaces the topic hints.
func WithHints(hints []Hint) Option {
	return func(p *Parser) { p.hints = append([]Hint(nil), hints...) }
}

// WithScope limits ordinal and topic heuristics to the given surahs,
// normally the surahs that actually have commentary in the corpus.
func WithScope(surahs []int) Option {
	return func(p *Parser) {
		p.scope = make(map[int]struct{}, len(surahs))
		for _, s := range surahs {
			p.scope[s] = struct{}{}
		}
	}
}

// NewParser builds a parser with the default catalog, aliases and hints.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		catalog:  newCatalogIndex(DefaultCatalog),
		ordinals: defaultOrdinals,
		hints:    DefaultHints,
	}
	for _, alias := range defaultAliases {
		p.aliases = append(p.aliases, phraseRule{words: strings.Fields(normalizeName(alias.phrase)), ref: alias.ref})
	}
	WithScope([]int{1, 2})(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the best reference found in text. ok is false when nothing
// matches, which is the common case for conversational input.
func (p *Parser) Parse(text string) (Ref, bool) {
	candidates := p.Candidates(text)
	if len(candidates) == 0 {
		return Ref{}, false
	}
	return candidates[0].Ref, true
}

// Candidates returns every interpretation of text, best first. Ties on
// confidence go to the earliest match in the text.
func (p *Parser) Candidates(text string) []Candidate {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var out []Candidate
	out = append(out, numericCandidates(tokens)...)
	named, mentioned := p.namedCandidates(tokens)
	out = append(out, named...)
	out = append(out, p.aliasCandidates(tokens)...)
	out = append(out, p.ordinalCandidates(tokens, mentioned)...)
	out = append(out, p.topicCandidates(tokens, mentioned)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func tokenize(text string) []token {
	text = normalizeDigits(strings.ToValidUTF8(text, " "))
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parsed, err := messageParser.ParseString("", text)
	if err != nil {
		return nil
	}

	tokens := make([]token, 0, len(parsed.Parts))
	for _, pt := range parsed.Parts {
		switch {
		case pt.Numeric != nil:
			surah, serr := strconv.Atoi(pt.Numeric.Surah)
			ayah, aerr := strconv.Atoi(pt.Numeric.Ayah)
			ref := Ref{Surah: surah, Ayah: ayah}
			tokens = append(tokens, token{
				kind:  tokenNumeric,
				text:  pt.Numeric.Surah + ":" + pt.Numeric.Ayah,
				ref:   ref,
				valid: serr == nil && aerr == nil && validRef(ref),
			})
		case pt.Int != nil:
			n, err := strconv.Atoi(*pt.Int)
			tokens = append(tokens, token{kind: tokenInt, text: *pt.Int, value: n, valid: err == nil && n > 0})
		case pt.Word != nil:
			// "Al-Fatiha" becomes the two words "al" and "fatiha".
			for _, w := range strings.Fields(normalizeName(*pt.Word)) {
				tokens = append(tokens, token{kind: tokenWord, text: w})
			}
		case pt.Other != nil:
			tokens = append(tokens, token{kind: tokenOther, text: *pt.Other})
		}
	}
	return tokens
}

func numericCandidates(tokens []token) []Candidate {
	var out []Candidate
	for i, t := range tokens {
		if t.kind == tokenNumeric && t.valid {
			out = append(out, Candidate{Ref: t.ref, Pattern: PatternNumeric, Confidence: confidenceNumeric, Position: i})
		}
	}
	return out
}

// namedCandidates finds surah names followed (or preceded, via "of") by an
// ayah number. It also reports every surah mentioned, in order, for the
// heuristics that need a surah context.
func (p *Parser) namedCandidates(tokens []token) ([]Candidate, []int) {
	var (
		out       []Candidate
		mentioned []int
	)
	for i := 0; i < len(tokens); i++ {
		surah, width, ok := p.matchSurah(tokens, i)
		if !ok {
			continue
		}
		mentioned = append(mentioned, surah.Number)

		if n, ok := numberAfter(tokens, i+width); ok {
			out = append(out, Candidate{
				Ref:        Ref{Surah: surah.Number, Ayah: n},
				Pattern:    PatternNamedNumber,
				Confidence: confidenceNamedNumber,
				Position:   i,
			})
		} else if n, ok := numberBeforeOf(tokens, i); ok {
			out = append(out, Candidate{
				Ref:        Ref{Surah: surah.Number, Ayah: n},
				Pattern:    PatternNumberOfName,
				Confidence: confidenceNumberOfName,
				Position:   i,
			})
		}
		i += width - 1
	}
	return out, mentioned
}

// matchSurah tries the longest run of word tokens starting at i that names a
// catalog surah.
func (p *Parser) matchSurah(tokens []token, i int) (Surah, int, bool) {
	for width := p.catalog.maxWords; width >= 1; width-- {
		if i+width > len(tokens) {
			continue
		}
		words := make([]string, 0, width)
		for _, t := range tokens[i : i+width] {
			if t.kind != tokenWord {
				break
			}
			words = append(words, t.text)
		}
		if len(words) != width {
			continue
		}
		if s, ok := p.catalog.byName[normalizeName(strings.Join(words, " "))]; ok {
			return s, width, true
		}
	}
	return Surah{}, 0, false
}

var verseWords = map[string]struct{}{
	"verse": {}, "verses": {}, "ayah": {}, "ayat": {}, "aya": {}, "ayet": {}, "ayeti": {},
	"v": {}, "no": {}, "number": {}, "آية": {}, "الآية": {}, "اية": {}, "ayahnya": {},
}

// numberAfter accepts "<name> 3", "<name>, verse 3", "<name> ayah no. 3".
func numberAfter(tokens []token, i int) (int, bool) {
	for ; i < len(tokens); i++ {
		t := tokens[i]
		switch t.kind {
		case tokenInt:
			return t.value, t.valid
		case tokenWord:
			if _, filler := verseWords[t.text]; !filler {
				return 0, false
			}
		case tokenOther:
			if t.text != "," && t.text != "." && t.text != "#" {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	return 0, false
}

// numberBeforeOf accepts "verse 3 of <name>", "3rd ayah of <name>" and
// "ayah 3 from <name>".
func numberBeforeOf(tokens []token, nameAt int) (int, bool) {
	i := nameAt - 1
	if i >= 0 && tokens[i].kind == tokenWord && tokens[i].text == "the" {
		i--
	}
	if i < 1 || tokens[i].kind != tokenWord || (tokens[i].text != "of" && tokens[i].text != "from" && tokens[i].text != "in") {
		return 0, false
	}
	for i--; i >= 0; i-- {
		t := tokens[i]
		switch t.kind {
		case tokenInt:
			return t.value, t.valid
		case tokenWord:
			_, filler := verseWords[t.text]
			_, suffix := ordinalSuffixes[t.text]
			if !filler && !suffix {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	return 0, false
}

var ordinalSuffixes = map[string]struct{}{"st": {}, "nd": {}, "rd": {}, "th": {}}

func (p *Parser) aliasCandidates(tokens []token) []Candidate {
	var out []Candidate
	for _, rule := range p.aliases {
		if pos, ok := findPhrase(tokens, rule.words); ok {
			out = append(out, Candidate{Ref: rule.ref, Pattern: PatternAlias, Confidence: confidenceAlias, Position: pos})
		}
	}
	return out
}

func (p *Parser) ordinalCandidates(tokens []token, mentioned []int) []Candidate {
	surah, ok := p.firstScoped(mentioned)
	if !ok {
		return nil
	}
	var out []Candidate
	for i, t := range tokens {
		if t.kind != tokenWord {
			continue
		}
		n, ok := p.ordinals[t.text]
		if !ok {
			continue
		}
		if n == ordinalLast {
			s, known := p.catalog.byNumber[surah]
			if !known || s.Ayahs == 0 {
				continue
			}
			n = s.Ayahs
		}
		out = append(out, Candidate{Ref: Ref{Surah: surah, Ayah: n}, Pattern: PatternOrdinal, Confidence: confidenceOrdinal, Position: i})
	}
	return out
}

// topicCandidates scores each hint by the number of its phrases present.
// When a surah is mentioned only hints for that surah are considered.
func (p *Parser) topicCandidates(tokens []token, mentioned []int) []Candidate {
	restrict, hasSurah := p.firstScoped(mentioned)
	var out []Candidate
	for _, h := range p.hints {
		if !p.inScope(h.Ref.Surah) {
			continue
		}
		if hasSurah && h.Ref.Surah != restrict {
			continue
		}
		hits, first := 0, -1
		for _, phrase := range h.Phrases {
			if pos, ok := findPhrase(tokens, strings.Fields(normalizeName(phrase))); ok {
				hits++
				if first < 0 || pos < first {
					first = pos
				}
			}
		}
		if hits == 0 {
			continue
		}
		bonus := hits - 1
		if bonus > 9 {
			bonus = 9
		}
		out = append(out, Candidate{Ref: h.Ref, Pattern: PatternTopic, Confidence: confidenceTopic + bonus, Position: first})
	}
	return out
}

func (p *Parser) firstScoped(mentioned []int) (int, bool) {
	for _, s := range mentioned {
		if p.inScope(s) {
			return s, true
		}
	}
	return 0, false
}

func (p *Parser) inScope(surah int) bool {
	_, ok := p.scope[surah]
	return ok
}

// findPhrase returns the token offset of the first occurrence of words as
// consecutive word tokens.
func findPhrase(tokens []token, words []string) (int, bool) {
	if len(words) == 0 {
		return 0, false
	}
outer:
	for i := 0; i+len(words) <= len(tokens); i++ {
		for j, w := range words {
			t := tokens[i+j]
			if t.kind != tokenWord || t.text != w {
				continue outer
			}
		}
		return i, true
	}
	return 0, false
}

func validRef(r Ref) bool {
	return r.Surah >= 1 && r.Surah <= maxSurah && r.Ayah > 0
}

// normalizeDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}
