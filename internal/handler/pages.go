package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/flagfinder/internal/analysis"
	"github.com/hitoshi/flagfinder/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ページの表示状態
const (
	resultsStateMissingID = "missing"
	resultsStateNotFound  = "notfound"
	resultsStateReady     = "ready"
)

// PageHandler はサーバー側でレンダリングするHTMLページのハンドラー。
type PageHandler struct {
	analyses AnalysisServiceInterface
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(analyses AnalysisServiceInterface) *PageHandler {
	return &PageHandler{analyses: analyses}
}

type resultsPage struct {
	State     string
	ID        string
	Analysis  *model.Analysis
	Profile1  profileView
	Profile2  profileView
	Score     int
	ScoreBand string
}

type profileView struct {
	Name string
	Data model.Snapshot
}

type deletionConfirmationPage struct {
	UserID string
}

// Results は解析結果ページを表示する。
// GET /results?id=xxx
func (h *PageHandler) Results(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		renderPage(w, http.StatusBadRequest, "results.html", resultsPage{State: resultsStateMissingID})
		return
	}

	a, err := h.analyses.Get(r.Context(), id)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAnalysisNotFound {
			renderPage(w, http.StatusNotFound, "results.html", resultsPage{State: resultsStateNotFound, ID: id})
			return
		}
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeMissingAnalysisID {
			renderPage(w, http.StatusBadRequest, "results.html", resultsPage{State: resultsStateMissingID})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	score := analysis.CompatibilityScore(a)
	renderPage(w, http.StatusOK, "results.html", resultsPage{
		State:     resultsStateReady,
		ID:        a.ID,
		Analysis:  a,
		Profile1:  profileView{Name: a.Profile1, Data: a.Profile1Data},
		Profile2:  profileView{Name: a.Profile2, Data: a.Profile2Data},
		Score:     score,
		ScoreBand: analysis.ScoreBand(score),
	})
}

// DeletionConfirmation はデータ削除の確認ページを表示する。
// GET /data-deletion-confirmation?user_id=xxx
func (h *PageHandler) DeletionConfirmation(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "deletion_confirmation.html", deletionConfirmationPage{
		UserID: r.URL.Query().Get("user_id"),
	})
}

// renderPage はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中までのHTMLを返さない。
func renderPage(w http.ResponseWriter, statusCode int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}
