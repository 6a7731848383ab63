package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"well formed", "JWT abc.def.ghi", "abc.def.ghi", true},
		{"prefix case insensitive", "jwt abc.def.ghi", "abc.def.ghi", true},
		{"extra whitespace collapsed", "JWT   abc.def.ghi", "abc.def.ghi", true},
		{"absent header", "", "", false},
		{"prefix only", "JWT", "", false},
		{"wrong prefix", "Bearer abc.def.ghi", "", false},
		{"too many parts", "JWT abc def", "", false},
		{"token only", "abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}

			token, ok := BearerToken(h, "Authorization", "JWT")
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantToken, token)
		})
	}
}

func TestBearerToken_CustomHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Access-Token", "Bearer abc.def.ghi")

	token, ok := BearerToken(h, "X-Access-Token", "Bearer")
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", token)

	// The default header is not consulted.
	_, ok = BearerToken(h, "Authorization", "Bearer")
	require.False(t, ok)
}
