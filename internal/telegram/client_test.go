package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	client := NewClient("secret", srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, client.SendMessage(context.Background(), 7, "hello"))
	require.Equal(t, "/botsecret/sendMessage", gotPath)
	require.Equal(t, "hello", payload["text"])
	require.Equal(t, float64(7), payload["chat_id"])
}

func TestSendMessageNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "bot was blocked"})
	}))
	defer srv.Close()

	client := NewClient("secret", srv.URL, time.Second, zerolog.Nop())
	err := client.SendMessage(context.Background(), 7, "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bot was blocked")
}

func TestSendMessageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("secret", srv.URL, time.Second, zerolog.Nop())
	require.Error(t, client.SendMessage(context.Background(), 7, "hello"))
}

func TestGetUpdates(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "getUpdates")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 101,
					"message": map[string]any{
						"message_id": 1,
						"text":       "/start",
						"chat":       map[string]any{"id": 7},
						"from":       map[string]any{"id": 7, "first_name": "Sam"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("secret", srv.URL, time.Second, zerolog.Nop())
	updates, err := client.GetUpdates(context.Background(), 100, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, float64(100), payload["offset"])
	require.Equal(t, float64(30), payload["timeout"])

	require.Len(t, updates, 1)
	require.Equal(t, int64(101), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	require.Equal(t, "/start", updates[0].Message.Text)
	require.Equal(t, int64(7), updates[0].Message.Chat.ID)
	require.Equal(t, "Sam", updates[0].Message.From.FirstName)
}
