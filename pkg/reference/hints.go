package reference

// Hint ties a verse to phrases that commonly identify it in conversation.
type Hint struct {
	Ref     Ref
	Phrases []string
}

// DefaultHints covers the verses of the bundled sample corpus.
var DefaultHints = []Hint{
	{Ref: Ref{1, 2}, Phrases: []string{"praise", "hamd", "alhamdulillah", "lord of the worlds", "rabb"}},
	{Ref: Ref{1, 3}, Phrases: []string{"mercy", "merciful", "compassion", "rahman", "raheem", "الرحمن الرحيم"}},
	{Ref: Ref{1, 4}, Phrases: []string{"judgment", "judgement", "day of judgment", "recompense", "sovereign", "master of the day"}},
	{Ref: Ref{1, 5}, Phrases: []string{"worship", "ask for help", "you alone", "iyyaka", "reliance"}},
	{Ref: Ref{1, 6}, Phrases: []string{"guidance", "guide us", "straight path", "sirat", "ihdina"}},
	{Ref: Ref{1, 7}, Phrases: []string{"astray", "anger", "wrath", "path of those", "favored", "favoured"}},
	{Ref: Ref{2, 1}, Phrases: []string{"alif lam mim", "alif lam meem", "disjointed letters", "muqattaat"}},
	{Ref: Ref{2, 2}, Phrases: []string{"no doubt", "this is the book", "taqwa", "righteous", "god conscious"}},
	{Ref: Ref{2, 3}, Phrases: []string{"unseen", "ghayb", "establish prayer", "spend", "charity"}},
}

type aliasPhrase struct {
	phrase string
	ref    Ref
}

var defaultAliases = []aliasPhrase{
	{"bismillah", Ref{1, 1}},
	{"bismilah", Ref{1, 1}},
	{"basmalah", Ref{1, 1}},
	{"basmala", Ref{1, 1}},
	{"bismillahir rahmanir rahim", Ref{1, 1}},
	{"بسم الله", Ref{1, 1}},
	{"البسملة", Ref{1, 1}},
	{"ayat al kursi", Ref{2, 255}},
	{"ayatul kursi", Ref{2, 255}},
	{"آية الكرسي", Ref{2, 255}},
}

const ordinalLast = -1

var defaultOrdinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": ordinalLast, "final": ordinalLast,
	"الأولى": 1, "الاولى": 1, "الثانية": 2, "الثالثة": 3, "الأخيرة": ordinalLast,
}
