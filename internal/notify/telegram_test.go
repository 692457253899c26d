package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTelegramDeliver(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", zap.NewNop().Sugar())
	tg.BaseURL = srv.URL + "/bot"

	require.NoError(t, tg.Deliver("telegram:123456", "spp changed"))
	assert.Equal(t, "123456", got.ChatID, "telegram: prefix is stripped")
	assert.Equal(t, "markdown", got.ParseMode)
	assert.Equal(t, "spp changed", got.Text)
}

func TestTelegramDeliverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", zap.NewNop().Sugar())
	tg.BaseURL = srv.URL + "/bot"

	err := tg.Deliver("123456", "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDelivery))
}
