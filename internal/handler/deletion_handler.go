package handler

import (
	"context"
	"mime"
	"net/http"

	"github.com/hitoshi/flagfinder/internal/model"
)

// DeletionServiceInterface はデータ削除ハンドラーが必要とするサービスインターフェース。
type DeletionServiceInterface interface {
	HandleSignedRequest(ctx context.Context, raw string) (string, error)
}

// DeletionHandler はデータ削除コールバックのHTTPハンドラー。
type DeletionHandler struct {
	service DeletionServiceInterface
}

// NewDeletionHandler はDeletionHandlerを生成する。
func NewDeletionHandler(service DeletionServiceInterface) *DeletionHandler {
	return &DeletionHandler{service: service}
}

type deletionRequest struct {
	SignedRequest string `json:"signed_request"`
}

type deletionResponse struct {
	URL string `json:"url"`
}

// DataDeletion はsigned_requestを検証して該当ユーザーの解析レコードを削除する。
// JSONとフォーム形式のどちらのボディも受け付ける。
// POST /api/instagram/data-deletion
func (h *DeletionHandler) DataDeletion(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := readSignedRequest(w, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	confirmationURL, err := h.service.HandleSignedRequest(r.Context(), raw)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deletionResponse{URL: confirmationURL})
}

func readSignedRequest(w http.ResponseWriter, r *http.Request) (string, *model.APIError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := r.ParseForm(); err != nil {
			return "", model.NewInvalidRequestError()
		}
		return r.PostForm.Get("signed_request"), nil
	default:
		var req deletionRequest
		if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
			return "", apiErr
		}
		return req.SignedRequest, nil
	}
}
