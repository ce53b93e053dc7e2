package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/flagfinder/internal/model"
	"github.com/hitoshi/flagfinder/internal/scrape"
)

// ScrapeServiceInterface はプロフィール取得ハンドラーが必要とするサービスインターフェース。
type ScrapeServiceInterface interface {
	FetchPair(ctx context.Context, req *scrape.Validated) (*model.Snapshot, *model.Snapshot, error)
}

// ScrapeHandler はプロフィール取得のHTTPハンドラー。
type ScrapeHandler struct {
	service ScrapeServiceInterface
}

// NewScrapeHandler はScrapeHandlerを生成する。
func NewScrapeHandler(service ScrapeServiceInterface) *ScrapeHandler {
	return &ScrapeHandler{service: service}
}

// scrapeResponse は2人分のスナップショットのレスポンス。
type scrapeResponse struct {
	Profile1 *model.Snapshot `json:"profile1"`
	Profile2 *model.Snapshot `json:"profile2"`
}

// Scrape は2人分のプロフィールを取得して返す。
// POST /api/scrape
func (h *ScrapeHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req scrape.Request
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	// 入力検証はブラウザやネットワークを使う前に行う
	validated, apiErr := req.Validate()
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	p1, p2, err := h.service.FetchPair(r.Context(), validated)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scrapeResponse{Profile1: p1, Profile2: p2})
}
