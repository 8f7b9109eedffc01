package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/models"
	"github.com/vdavid/vmail-lite/internal/testutil"
)

func TestRequireAuth(t *testing.T) {
	codec := testutil.GetTestTokenCodec(t)
	creds := models.Credentials{Address: "ali@example.com", Secret: "pw", Host: "mail.example.com", UseTLS: true}
	token, err := codec.Encode(creds)
	require.NoError(t, err)

	tampered := []byte(token)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := GetCredentialsFromContext(r.Context())
		if !ok {
			t.Error("Expected credentials in context")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(got.Address))
	})

	headerOnly := RequireAuth(codec)(handler)
	withQuery := RequireAuthOrQuery(codec)(handler)

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		query   string
		want    int
	}{
		{name: "bearer token", handler: headerOnly, header: "Bearer " + token, want: http.StatusOK},
		{name: "lowercase scheme", handler: headerOnly, header: "bearer " + token, want: http.StatusOK},
		{name: "raw token", handler: headerOnly, header: token, want: http.StatusOK},
		{name: "no header", handler: headerOnly, want: http.StatusUnauthorized},
		{name: "other scheme", handler: headerOnly, header: "Basic " + token, want: http.StatusUnauthorized},
		{name: "tampered token", handler: headerOnly, header: "Bearer " + string(tampered), want: http.StatusUnauthorized},
		{name: "garbage token", handler: headerOnly, header: "Bearer not-a-token", want: http.StatusUnauthorized},
		{name: "query token ignored without opt-in", handler: headerOnly, query: token, want: http.StatusUnauthorized},
		{name: "query token", handler: withQuery, query: token, want: http.StatusOK},
		{name: "header wins over query", handler: withQuery, header: "Bearer " + token, query: "junk", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/test"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ali@example.com", rr.Body.String())
				return
			}

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Yetkisiz erişim", body["error"])
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "", TokenFromHeader(""))
	assert.Equal(t, "", TokenFromHeader("   "))
	assert.Equal(t, "abc", TokenFromHeader("abc"))
	assert.Equal(t, "abc", TokenFromHeader("Bearer   abc  "))
	assert.Equal(t, "", TokenFromHeader("Token abc"))
}

func TestGetCredentialsFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := GetCredentialsFromContext(req.Context())
	assert.False(t, ok)

	creds := models.Credentials{Address: "a@example.com"}
	got, ok := GetCredentialsFromContext(WithCredentials(req.Context(), creds))
	assert.True(t, ok)
	assert.Equal(t, creds, got)
}
