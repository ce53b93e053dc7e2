package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/flagfinder/internal/model"
)

func TestValidate_NormalizesInput(t *testing.T) {
	v, apiErr := Request{Platform: " Instagram ", Profile1: " @alice ", Profile2: "bob.smith_2"}.Validate()
	require.Nil(t, apiErr)

	assert.Equal(t, model.PlatformInstagram, v.Platform)
	assert.Equal(t, "alice", v.Profile1)
	assert.Equal(t, "bob.smith_2", v.Profile2)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		code string
	}{
		{"missing platform", Request{Profile1: "a", Profile2: "b"}, model.ErrCodeInvalidPlatform},
		{"unknown platform", Request{Platform: "myspace", Profile1: "a", Profile2: "b"}, model.ErrCodeInvalidPlatform},
		{"missing profile1", Request{Platform: "instagram", Profile2: "b"}, model.ErrCodeMissingProfile},
		{"only at sign", Request{Platform: "instagram", Profile1: "@", Profile2: "b"}, model.ErrCodeMissingProfile},
		{"path traversal", Request{Platform: "instagram", Profile1: "../admin", Profile2: "b"}, model.ErrCodeInvalidUsername},
		{"query injection", Request{Platform: "twitter", Profile1: "a", Profile2: "b?x=1"}, model.ErrCodeInvalidUsername},
		{"too long", Request{Platform: "instagram", Profile1: "abcdefghijabcdefghijabcdefghijk", Profile2: "b"}, model.ErrCodeInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, apiErr := tt.req.Validate()
			assert.Nil(t, v)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestValidate_MissingPlatformMessage(t *testing.T) {
	_, apiErr := Request{Profile1: "a", Profile2: "b"}.Validate()
	require.NotNil(t, apiErr)
	assert.Equal(t, "Missing platform", apiErr.Message)

	_, apiErr = Request{Platform: "myspace", Profile1: "a", Profile2: "b"}.Validate()
	require.NotNil(t, apiErr)
	assert.Equal(t, "Invalid platform: myspace", apiErr.Message)
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/alice/", ProfileURL(model.PlatformInstagram, "alice"))
	assert.Equal(t, "https://x.com/alice", ProfileURL(model.PlatformTwitter, "alice"))
}
