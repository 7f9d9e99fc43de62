package entity

import "strings"

// Language is the language an explanation should be written in.
type Language string

const (
	LanguageUnspecified Language = ""
	LanguageEnglish     Language = "english"
	LanguageArabic      Language = "arabic"
	LanguageTurkish     Language = "turkish"
	LanguageIndonesian  Language = "indonesian"
	LanguageSpanish     Language = "spanish"
	LanguageUrdu        Language = "urdu"
	LanguageFrench      Language = "french"
)

// ParseLanguage converts names or ISO codes into a supported Language value.
func ParseLanguage(code string) Language {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "en", "english":
		return LanguageEnglish
	case "ar", "arabic", "العربية":
		return LanguageArabic
	case "tr", "turkish", "türkçe":
		return LanguageTurkish
	case "id", "indonesian", "bahasa indonesia":
		return LanguageIndonesian
	case "es", "spanish", "español":
		return LanguageSpanish
	case "ur", "urdu":
		return LanguageUrdu
	case "fr", "french", "français":
		return LanguageFrench
	default:
		return LanguageUnspecified
	}
}

// CodeOrDefault returns the language name, falling back to English when unspecified.
func (l Language) CodeOrDefault() string {
	if strings.TrimSpace(string(l)) == "" {
		return string(LanguageEnglish)
	}
	return string(l)
}

// DisplayName is the capitalised name used inside prompts.
func (l Language) DisplayName() string {
	code := l.CodeOrDefault()
	return strings.ToUpper(code[:1]) + code[1:]
}

// StyleLevel controls how deep a generated explanation goes.
type StyleLevel string

const (
	StyleSimple    StyleLevel = "simple"
	StyleDetailed  StyleLevel = "detailed"
	StyleScholarly StyleLevel = "scholarly"
)

// AnswerKind selects the shape of a generated answer.
type AnswerKind string

const (
	KindExplanation AnswerKind = "explanation"
	KindReflection  AnswerKind = "reflection" // journal-style life lessons
)

// ParseAnswerKind maps free text onto an AnswerKind, defaulting to explanation.
func ParseAnswerKind(s string) AnswerKind {
	if AnswerKind(strings.ToLower(strings.TrimSpace(s))) == KindReflection {
		return KindReflection
	}
	return KindExplanation
}

// ParseStyleLevel maps free text onto a StyleLevel, defaulting to simple.
func ParseStyleLevel(s string) StyleLevel {
	switch StyleLevel(strings.ToLower(strings.TrimSpace(s))) {
	case StyleDetailed:
		return StyleDetailed
	case StyleScholarly:
		return StyleScholarly
	default:
		return StyleSimple
	}
}

// Feature names a gated product surface.
type Feature string

const (
	FeatureTafsir  Feature = "tafsir"
	FeatureChatbot Feature = "chatbot"
	FeatureVoice   Feature = "voice"
	FeatureNames   Feature = "names"
	FeatureStories Feature = "stories"
)
