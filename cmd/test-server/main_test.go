package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/models"
)

func TestSeededServer(t *testing.T) {
	imapServer, smtpServer, err := startMailServers()
	require.NoError(t, err)
	t.Cleanup(imapServer.Close)
	t.Cleanup(smtpServer.Close)

	require.NoError(t, seedTestData(imapServer))

	cfg := getConfig()
	handler, token, err := newServer(cfg, imapServer.Credentials(), smtpServer.Port(), nil)
	require.NoError(t, err)

	list := func(folder string) []models.MessageSummary {
		req := httptest.NewRequest(http.MethodGet, "/api/mails?folder="+folder, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var body struct {
			Data []models.MessageSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body.Data
	}

	// The memory backend ships one message of its own.
	assert.Len(t, list("INBOX"), 4)
	assert.Len(t, list("STARRED"), 1)
	assert.Len(t, list("DRAFTS"), 1)
	assert.Empty(t, list("TRASH"))
}
