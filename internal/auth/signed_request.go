package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// signed_request検証のエラー
var (
	// ErrMalformedSignedRequest は形式が不正なsigned_requestを表す。
	ErrMalformedSignedRequest = errors.New("malformed signed_request")
	// ErrInvalidSignature は署名が一致しないsigned_requestを表す。
	ErrInvalidSignature = errors.New("invalid signed_request signature")
)

// SignedRequest はデータ削除コールバックで届く署名付きペイロードの内容。
type SignedRequest struct {
	UserID    string
	Algorithm string
	IssuedAt  int64
}

type signedPayload struct {
	UserID    ProviderID `json:"user_id"`
	Algorithm string     `json:"algorithm"`
	IssuedAt  int64      `json:"issued_at"`
}

// ParseSignedRequest は "<signature>.<payload>" 形式のsigned_requestを検証してデコードする。
// 署名はエンコード済みペイロード文字列に対するHMAC-SHA256で、定数時間で比較する。
// 署名の検証はペイロードJSONの解釈より前に行う。
func ParseSignedRequest(raw, secret string) (*SignedRequest, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected <signature>.<payload>", ErrMalformedSignedRequest)
	}
	encodedSig, encodedPayload := parts[0], parts[1]

	sig, err := decodeSegment(encodedSig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64url: %v", ErrMalformedSignedRequest, err)
	}
	payload, err := decodeSegment(encodedPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64url: %v", ErrMalformedSignedRequest, err)
	}

	if !hmac.Equal(sig, computeSignature(encodedPayload, secret)) {
		return nil, ErrInvalidSignature
	}

	var p signedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %v", ErrMalformedSignedRequest, err)
	}

	return &SignedRequest{
		UserID:    string(p.UserID),
		Algorithm: p.Algorithm,
		IssuedAt:  p.IssuedAt,
	}, nil
}

// SignSignedRequest はpayloadをJSONエンコードし、secretで署名したsigned_requestを生成する。
func SignSignedRequest(payload any, secret string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(body)
	sig := computeSignature(encodedPayload, secret)
	return base64.RawURLEncoding.EncodeToString(sig) + "." + encodedPayload, nil
}

func computeSignature(encodedPayload, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encodedPayload))
	return mac.Sum(nil)
}

// decodeSegment はbase64urlをデコードする。パディングの有無と標準アルファベットを許容する。
func decodeSegment(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}
