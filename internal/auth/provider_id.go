package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProviderID はJSON上で数値・文字列のどちらでも届くプロバイダーのユーザーIDを表す。
// 数値は精度を落とさないよう元の10進表現のまま保持する。
type ProviderID string

// UnmarshalJSON は数値、文字列、nullを受け付ける。
func (id *ProviderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProviderID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a number or string: %w", err)
	}
	*id = ProviderID(n.String())
	return nil
}
