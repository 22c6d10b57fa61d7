package platform_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/rest"
	"github.com/glyphbot/glyph/internal/discord/platform"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/glyphbot/glyph/internal/moderation/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ action.Platform = (*platform.Client)(nil)
	_ worker.Platform = (*platform.Client)(nil)
)

type recordedRequest struct {
	method string
	path   string
	reason string
	body   []byte
}

// newTestClient serves every request with the given status and body and
// records what was sent.
func newTestClient(t *testing.T, status int, body string) (*platform.Client, func() []recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)

		mu.Lock()
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			reason: r.Header.Get("X-Audit-Log-Reason"),
			body:   data,
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		if body != "" {
			_, _ = io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)

	restClient := rest.NewClient("token", rest.WithURL(srv.URL), rest.WithHTTPClient(srv.Client()))
	t.Cleanup(func() { restClient.Close(context.Background()) })

	client := platform.New(rest.New(restClient), zap.NewNop())

	return client, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()

		return append([]recordedRequest(nil), requests...)
	}
}

func TestUpdateMessageComponents(t *testing.T) {
	t.Parallel()

	client, requests := newTestClient(t, http.StatusOK, `{"id":"30","channel_id":"20","content":""}`)

	err := client.UpdateMessageComponents(t.Context(), 20, 30, action.BuildView(10, 20, 30, 24*time.Hour, true))
	require.NoError(t, err)

	sent := requests()
	require.Len(t, sent, 1)
	assert.Equal(t, http.MethodPatch, sent[0].method)
	assert.Equal(t, "/channels/20/messages/30", sent[0].path)

	var payload struct {
		Content    *string `json:"content"`
		Embeds     []any   `json:"embeds"`
		Components []struct {
			Type       int `json:"type"`
			Components []struct {
				CustomID string `json:"custom_id"`
				Disabled bool   `json:"disabled"`
			} `json:"components"`
		} `json:"components"`
	}
	require.NoError(t, sonic.Unmarshal(sent[0].body, &payload))

	// Content and embeds are left as they are
	assert.Nil(t, payload.Content)
	assert.Nil(t, payload.Embeds)

	require.Len(t, payload.Components, 1)
	assert.Equal(t, 1, payload.Components[0].Type)
	require.Len(t, payload.Components[0].Components, 5)
	assert.Equal(t, "flagged_message_options:kick-20-30", payload.Components[0].Components[3].CustomID)
	assert.True(t, payload.Components[0].Components[3].Disabled)
}

func TestDeleteMessage(t *testing.T) {
	t.Parallel()

	t.Run("sends audit reason", func(t *testing.T) {
		t.Parallel()

		client, requests := newTestClient(t, http.StatusNoContent, "")

		require.NoError(t, client.DeleteMessage(t.Context(), 20, 30, "Deleted by mod."))

		sent := requests()
		require.Len(t, sent, 1)
		assert.Equal(t, http.MethodDelete, sent[0].method)
		assert.Equal(t, "Deleted by mod.", sent[0].reason)
	})

	t.Run("unknown message", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.StatusNotFound, `{"code":10008,"message":"Unknown Message"}`)

		err := client.DeleteMessage(t.Context(), 20, 30, "")
		require.ErrorIs(t, err, platform.ErrNotFound)
	})

	t.Run("missing permissions", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, http.StatusForbidden, `{"code":50013,"message":"Missing Permissions"}`)

		err := client.DeleteMessage(t.Context(), 20, 30, "")
		require.ErrorIs(t, err, platform.ErrForbidden)
		assert.NotErrorIs(t, err, platform.ErrNotFound)
	})
}

func TestKickMemberServerError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.StatusInternalServerError, `{"message":"oops"}`)

	err := client.KickMember(t.Context(), 10, 40, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, platform.ErrNotFound)
	assert.NotErrorIs(t, err, platform.ErrForbidden)
}
