package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/flagfinder/internal/analysis"
	"github.com/hitoshi/flagfinder/internal/model"
)

// AnalysisServiceInterface は解析ハンドラーが必要とするサービスインターフェース。
type AnalysisServiceInterface interface {
	Create(ctx context.Context, req analysis.CreateRequest) (*model.Analysis, error)
	Get(ctx context.Context, id string) (*model.Analysis, error)
}

// AnalysisHandler は解析レコードのHTTPハンドラー。
type AnalysisHandler struct {
	service AnalysisServiceInterface
	baseURL string
}

// NewAnalysisHandler はAnalysisHandlerを生成する。
func NewAnalysisHandler(service AnalysisServiceInterface, baseURL string) *AnalysisHandler {
	return &AnalysisHandler{service: service, baseURL: baseURL}
}

// createAnalysisResponse は解析作成のレスポンス。
type createAnalysisResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// analysisResponse は解析レコードとスコアのレスポンス。
type analysisResponse struct {
	*model.Analysis
	CompatibilityScore int    `json:"compatibilityScore"`
	ScoreBand          string `json:"scoreBand"`
}

// Create はプロフィールを取得して解析レコードを作成する。
// POST /api/analyses
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req analysis.CreateRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	a, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAnalysisResponse{
		ID:  a.ID,
		URL: resultsURL(h.baseURL, a.ID),
	})
}

// Get は解析レコードを返す。
// GET /api/analyses/{id}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	score := analysis.CompatibilityScore(a)
	writeJSON(w, http.StatusOK, analysisResponse{
		Analysis:           a,
		CompatibilityScore: score,
		ScoreBand:          analysis.ScoreBand(score),
	})
}

// resultsURL は結果ページのURLを返す。
func resultsURL(baseURL, id string) string {
	return baseURL + "/results?id=" + url.QueryEscape(id)
}
