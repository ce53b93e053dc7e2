// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConfigMissing        = "CONFIG_MISSING"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidPlatform      = "INVALID_PLATFORM"
	ErrCodeMissingProfile       = "MISSING_PROFILE"
	ErrCodeInvalidUsername      = "INVALID_USERNAME"
	ErrCodeInvalidEmail         = "INVALID_EMAIL"
	ErrCodeUnsupportedPlatform  = "UNSUPPORTED_PLATFORM"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeInvalidSignedRequest = "INVALID_SIGNED_REQUEST"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeMissingUserID        = "MISSING_USER_ID"
	ErrCodeMissingAuthCode      = "MISSING_AUTH_CODE"
	ErrCodeInvalidOAuthState    = "INVALID_OAUTH_STATE"
	ErrCodeTokenExchangeFailed  = "TOKEN_EXCHANGE_FAILED"
	ErrCodeUpstreamFailed       = "UPSTREAM_FAILED"
	ErrCodeScrapeTimeout        = "SCRAPE_TIMEOUT"
	ErrCodeAnalysisNotFound     = "ANALYSIS_NOT_FOUND"
	ErrCodeMissingAnalysisID    = "MISSING_ANALYSIS_ID"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewConfigMissingError は必須設定の欠落エラーを生成する。
func NewConfigMissingError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigMissing,
		Message:  fmt.Sprintf("%s configuration missing", what),
		Category: "system",
		Action:   "Contact the site operator.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewInvalidPlatformError は未対応または未指定のプラットフォームのエラーを生成する。
func NewInvalidPlatformError(platform string) *APIError {
	msg := "Missing platform"
	if platform != "" {
		msg = fmt.Sprintf("Invalid platform: %s", platform)
	}
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  msg,
		Category: "validation",
		Action:   "Choose instagram or twitter.",
	}
}

// NewMissingProfileError はユーザー名未指定のエラーを生成する。
func NewMissingProfileError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingProfile,
		Message:  "Missing platform or usernames",
		Category: "validation",
		Action:   "Enter both usernames.",
	}
}

// NewInvalidUsernameError はユーザー名の形式エラーを生成する。
func NewInvalidUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUsername,
		Message:  fmt.Sprintf("Invalid username: %s", username),
		Category: "validation",
		Action:   "Usernames may contain letters, digits, dots and underscores (max 30).",
	}
}

// NewInvalidEmailError はメールアドレスの形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "A valid email address is required.",
		Category: "validation",
		Action:   "Check the email address and try again.",
	}
}

// NewUnsupportedPlatformError は現在の取得モードが対応しないプラットフォームのエラーを生成する。
func NewUnsupportedPlatformError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedPlatform,
		Message:  fmt.Sprintf("Platform %s is not supported by this deployment", platform),
		Category: "validation",
		Action:   "Choose instagram.",
	}
}

// NewUnauthenticatedError はセッション認証情報がない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Instagram login required.",
		Category: "auth",
		Action:   "Log in with Instagram and try again.",
	}
}

// NewInvalidSignedRequestError はsigned_requestの形式エラーを生成する。
func NewInvalidSignedRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignedRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Send a signed_request of the form <signature>.<payload>.",
	}
}

// NewInvalidSignatureError は署名不一致エラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "Invalid signature",
		Category: "auth",
		Action:   "Sign the payload with the application secret.",
	}
}

// NewMissingUserIDError はペイロードにuser_idがない場合のエラーを生成する。
func NewMissingUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUserID,
		Message:  "Missing user_id in payload",
		Category: "validation",
		Action:   "Include user_id in the signed payload.",
	}
}

// NewMissingAuthCodeError は認可コード未指定のエラーを生成する。
func NewMissingAuthCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAuthCode,
		Message:  "Authorization code missing",
		Category: "auth",
		Action:   "Start the Instagram login again.",
	}
}

// NewInvalidOAuthStateError はOAuth stateの不一致エラーを生成する。
func NewInvalidOAuthStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOAuthState,
		Message:  "Invalid state parameter",
		Category: "auth",
		Action:   "Start the Instagram login again.",
	}
}

// NewTokenExchangeFailedError はアクセストークン取得失敗のエラーを生成する。
func NewTokenExchangeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchangeFailed,
		Message:  "Failed to fetch access token",
		Category: "upstream",
		Action:   "Try logging in again later.",
	}
}

// NewUpstreamFailedError はプロフィール取得失敗のエラーを生成する。
// 取得元のエラー内容はクライアントに返さず、呼び出し側でログにのみ残す。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "Failed to scrape profiles",
		Category: "upstream",
		Action:   "Check the usernames and try again later.",
	}
}

// NewScrapeTimeoutError はプロフィール取得のタイムアウトエラーを生成する。
func NewScrapeTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeScrapeTimeout,
		Message:  "Fetching profiles took too long.",
		Category: "upstream",
		Action:   "Try again in a few minutes.",
	}
}

// NewAnalysisNotFoundError は解析結果が見つからない場合のエラーを生成する。
func NewAnalysisNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisNotFound,
		Message:  fmt.Sprintf("Analysis not found: %s", id),
		Category: "validation",
		Action:   "Check the results link.",
	}
}

// NewMissingAnalysisIDError は解析ID未指定のエラーを生成する。
func NewMissingAnalysisIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAnalysisID,
		Message:  "Missing analysis ID",
		Category: "validation",
		Action:   "Open the results link you received.",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
