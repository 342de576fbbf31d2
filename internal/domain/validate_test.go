package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldViolations(t *testing.T, err error) map[string][]string {
	t.Helper()

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make(map[string][]string)
	for _, v := range verrs.Errors {
		fields[v.Field] = append(fields[v.Field], v.Message)
	}
	return fields
}

func TestSendRequest_Validate_Destination(t *testing.T) {
	tests := []struct {
		name    string
		to      string
		wantErr bool
	}{
		{"valid us number", "+15551234567", false},
		{"valid short number", "+12", false},
		{"valid max length", "+123456789012345", false},
		{"missing plus", "5551234567", true},
		{"empty", "", true},
		{"leading zero after plus", "+05551234567", true},
		{"too long", "+1234567890123456", true},
		{"single digit", "+1", true},
		{"spaces", "+1 555 123 4567", true},
		{"dashes", "+1-555-123-4567", true},
		{"letters", "+1555abc4567", true},
		{"parentheses", "+1(555)1234567", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SendRequest{To: tt.to, Body: "hi"}.Validate()
			if tt.wantErr {
				fields := fieldViolations(t, err)
				assert.Contains(t, fields, "to")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSendRequest_Validate_Body(t *testing.T) {
	t.Run("body at limit is valid", func(t *testing.T) {
		req := SendRequest{To: "+15551234567", Body: strings.Repeat("a", 1600)}
		assert.NoError(t, req.Validate())
	})

	t.Run("body over limit is rejected", func(t *testing.T) {
		req := SendRequest{To: "+15551234567", Body: strings.Repeat("a", 1601)}
		fields := fieldViolations(t, req.Validate())
		assert.Contains(t, fields, "body")
	})

	t.Run("limit counts characters not bytes", func(t *testing.T) {
		// 1600 two-byte characters: 3200 bytes, but within the limit.
		req := SendRequest{To: "+15551234567", Body: strings.Repeat("é", 1600)}
		assert.NoError(t, req.Validate())
	})

	t.Run("multibyte body over limit is rejected", func(t *testing.T) {
		req := SendRequest{To: "+15551234567", Body: strings.Repeat("é", 1601)}
		fields := fieldViolations(t, req.Validate())
		assert.Contains(t, fields, "body")
	})
}

func TestSendRequest_Validate_MediaURLs(t *testing.T) {
	tests := []struct {
		name      string
		urls      []string
		wantField string
	}{
		{"https allowed", []string{"https://example.com/cat.png"}, ""},
		{"http allowed", []string{"http://example.com/cat.png"}, ""},
		{"ftp rejected", []string{"ftp://example.com/cat.png"}, "mediaUrls[0]"},
		{"second element rejected", []string{"https://example.com/a.png", "file:///etc/passwd"}, "mediaUrls[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SendRequest{To: "+15551234567", MediaURLs: tt.urls}
			err := req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			fields := fieldViolations(t, err)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestSendRequest_Validate_ContentRequired(t *testing.T) {
	req := SendRequest{To: "+15551234567"}
	err := req.Validate()

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Errors, 1)
	assert.Equal(t, "body", verrs.Errors[0].Field)
	assert.Contains(t, verrs.Errors[0].Message, "content required")
}

func TestSendRequest_Validate_CollectsAllViolations(t *testing.T) {
	req := SendRequest{
		To:        "5551234567",
		Body:      strings.Repeat("a", 2000),
		MediaURLs: []string{"ftp://example.com/a.png"},
	}

	fields := fieldViolations(t, req.Validate())
	assert.Contains(t, fields, "to")
	assert.Contains(t, fields, "body")
	assert.Contains(t, fields, "mediaUrls[0]")
}

func TestSendRequest_Validate_Deterministic(t *testing.T) {
	req := SendRequest{To: "bogus", Body: "hi"}

	first := req.Validate()
	second := req.Validate()
	assert.Equal(t, first, second)
}
