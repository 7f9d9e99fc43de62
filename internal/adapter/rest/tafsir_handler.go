package rest

import (
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/eslsoft/tafsirnet/internal/adapter/auth"
	"github.com/eslsoft/tafsirnet/internal/adapter/mapping"
	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/repository"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

// Authorizer checks a session token for a feature grant.
type Authorizer interface {
	Authorize(token string, feature entity.Feature) (*auth.Grant, error)
}

// TafsirHandler serves the verse and explanation endpoints.
type TafsirHandler struct {
	uc   usecase.TafsirUsecase
	auth Authorizer
}

// NewTafsirHandler builds the handler. A nil authorizer leaves explanation
// endpoints open.
func NewTafsirHandler(uc usecase.TafsirUsecase, authorizer Authorizer) *TafsirHandler {
	return &TafsirHandler{uc: uc, auth: authorizer}
}

// Register mounts every route on mux.
func (h *TafsirHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/verses/{surah}/{ayah}", h.lookup)
	mux.HandleFunc("GET /v1/search", h.search)
	mux.HandleFunc("GET /v1/parse", h.parse)
	mux.HandleFunc("POST /v1/prompt", h.prompt)
	mux.HandleFunc("POST /v1/explain", h.explain)
	mux.HandleFunc("POST /v1/reflection", h.reflection)
	mux.HandleFunc("GET /v1/topics/{topic}", h.topic)
	mux.HandleFunc("GET /v1/daily", h.daily)
	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("GET /v1/admin/entries", h.listEntries)
	mux.HandleFunc("POST /v1/admin/entries", h.addEntries)
}

type lookupResponse struct {
	Found bool           `json:"found"`
	Entry *mapping.Entry `json:"entry,omitempty"`
}

type entriesResponse struct {
	Items []*mapping.Entry `json:"items"`
	Total int              `json:"total"`
}

type parseResponse struct {
	Found     bool               `json:"found"`
	Reference *mapping.Reference `json:"reference,omitempty"`
}

type promptRequest struct {
	Surah    int    `json:"surah"`
	Ayah     int    `json:"ayah"`
	Question string `json:"question"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	Style    string `json:"style"`
}

type promptResponse struct {
	Prompt   string `json:"prompt"`
	Grounded bool   `json:"grounded"`
}

type explainRequest struct {
	Question  string   `json:"question"`
	Surah     int      `json:"surah"`
	Ayah      int      `json:"ayah"`
	Language  string   `json:"language"`
	Languages []string `json:"languages"`
	Style     string   `json:"style"`
	Kind      string   `json:"kind"`
	WithAudio bool     `json:"with_audio"`
}

// reflectionRequest asks for a journal-style reflection on a verse or a
// topic. With neither set the verse of the day is used.
type reflectionRequest struct {
	Surah    int    `json:"surah"`
	Ayah     int    `json:"ayah"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Style    string `json:"style"`
}

type explainResponse struct {
	Explanations []*mapping.Explanation `json:"explanations"`
}

type addEntriesRequest struct {
	Entries []*mapping.Entry `json:"entries"`
}

func (h *TafsirHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "verses": h.uc.Stats(r.Context()).TotalVerses})
}

func (h *TafsirHandler) lookup(w http.ResponseWriter, r *http.Request) {
	surah, err := pathInt(r, "surah")
	if err != nil {
		writeError(w, err)
		return
	}
	ayah, err := pathInt(r, "ayah")
	if err != nil {
		writeError(w, err)
		return
	}
	entry, ok := h.uc.Lookup(r.Context(), surah, ayah)
	writeJSON(w, http.StatusOK, lookupResponse{Found: ok, Entry: mapping.ToEntry(entry)})
}

func (h *TafsirHandler) search(w http.ResponseWriter, r *http.Request) {
	items := h.uc.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, entriesResponse{Items: mapping.ToEntries(items), Total: len(items)})
}

func (h *TafsirHandler) parse(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.uc.ParseReference(r.Context(), r.URL.Query().Get("text"))
	resp := parseResponse{Found: ok}
	if ok {
		resp.Reference = mapping.ToReference(&ref)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TafsirHandler) prompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	opts := usecase.PromptOptions{
		Language: entity.ParseLanguage(req.Language),
		Style:    entity.ParseStyleLevel(req.Style),
		Kind:     entity.ParseAnswerKind(req.Kind),
	}
	var entry *entity.CommentaryEntry
	if req.Surah > 0 || req.Ayah > 0 {
		ref := entity.VerseReference{Surah: req.Surah, Ayah: req.Ayah}
		opts.Reference = &ref
		if found, ok := h.uc.Lookup(r.Context(), req.Surah, req.Ayah); ok {
			entry = found
		}
	} else if ref, ok := h.uc.ParseReference(r.Context(), req.Question); ok {
		opts.Reference = &ref
		if found, ok := h.uc.Lookup(r.Context(), ref.Surah, ref.Ayah); ok {
			entry = found
		}
	}
	text, err := h.uc.BuildPrompt(r.Context(), entry, req.Question, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promptResponse{Prompt: text, Grounded: entry != nil})
}

func (h *TafsirHandler) explain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	features := []entity.Feature{entity.FeatureTafsir}
	if req.WithAudio {
		features = append(features, entity.FeatureVoice)
	}
	if err := h.authorize(r, features...); err != nil {
		writeError(w, err)
		return
	}

	ask := usecase.AskRequest{
		Question:  req.Question,
		Surah:     req.Surah,
		Ayah:      req.Ayah,
		Kind:      entity.ParseAnswerKind(req.Kind),
		Language:  entity.ParseLanguage(req.Language),
		Style:     entity.ParseStyleLevel(req.Style),
		WithAudio: req.WithAudio,
	}

	if len(req.Languages) > 0 {
		languages := lo.Filter(lo.Map(req.Languages, func(code string, _ int) entity.Language {
			return entity.ParseLanguage(code)
		}), func(l entity.Language, _ int) bool { return l != entity.LanguageUnspecified })
		results, err := h.uc.AskInLanguages(r.Context(), ask, languages)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, explainResponse{Explanations: lo.Map(results, func(e *entity.Explanation, _ int) *mapping.Explanation {
			return mapping.ToExplanation(e)
		})})
		return
	}

	result, err := h.uc.Ask(r.Context(), ask)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Explanations: []*mapping.Explanation{mapping.ToExplanation(result)}})
}

func (h *TafsirHandler) reflection(w http.ResponseWriter, r *http.Request) {
	var req reflectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.authorize(r, entity.FeatureTafsir); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.uc.Ask(r.Context(), usecase.AskRequest{
		Question: req.Topic,
		Surah:    req.Surah,
		Ayah:     req.Ayah,
		Kind:     entity.KindReflection,
		Language: entity.ParseLanguage(req.Language),
		Style:    entity.ParseStyleLevel(req.Style),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Explanations: []*mapping.Explanation{mapping.ToExplanation(result)}})
}

func (h *TafsirHandler) topic(w http.ResponseWriter, r *http.Request) {
	items := h.uc.ListByTopic(r.Context(), r.PathValue("topic"))
	writeJSON(w, http.StatusOK, entriesResponse{Items: mapping.ToEntries(items), Total: len(items)})
}

func (h *TafsirHandler) daily(w http.ResponseWriter, r *http.Request) {
	entry, err := h.uc.DailyVerse(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Found: true, Entry: mapping.ToEntry(entry)})
}

func (h *TafsirHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.uc.Stats(r.Context()))
}

func (h *TafsirHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	page, err := convertPagination(r)
	if err != nil {
		writeError(w, err)
		return
	}
	query := &repository.ListCommentaryQuery{
		Pagination: page,
		FilterOrder: repository.FilterOrder{
			Filter:  r.URL.Query().Get("filter"),
			OrderBy: r.URL.Query().Get("order_by"),
		},
	}
	items, total, err := h.uc.List(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entriesResponse{Items: mapping.ToEntries(items), Total: total})
}

func (h *TafsirHandler) addEntries(w http.ResponseWriter, r *http.Request) {
	var req addEntriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.uc.AddEntries(r.Context(), mapping.FromEntries(req.Entries)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(req.Entries)})
}

// authorize requires the token to grant every feature.
func (h *TafsirHandler) authorize(r *http.Request, features ...entity.Feature) error {
	if h.auth == nil {
		return nil
	}
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, feature := range features {
		if _, err := h.auth.Authorize(token, feature); err != nil {
			return err
		}
	}
	return nil
}
