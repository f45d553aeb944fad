package forwarder

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/models"
	"lifehub/internal/rules"
)

func TestDeliverPostsWebhookWithRenderedTemplate(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
	}))
	defer srv.Close()

	f := New(nil, "announce", "service")
	f.Deliver("u1", []models.ActionResult{{
		Type:    models.ActionN8NWebhook,
		Success: true,
		Result: map[string]any{
			"staged":           true,
			"webhook_url":      srv.URL,
			"payload_template": `{"room":"{room}","event":"{event}"}`,
		},
	}}, rules.Context{Room: "office"}, map[string]any{"event": "person_idle"})

	assert.Equal(t, `{"room":"office","event":"person_idle"}`, gotBody)
}

func TestDeliverWebhookFallsBackToTriggerData(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	f := New(nil, "announce", "service")
	f.Deliver("u1", []models.ActionResult{{
		Type:    models.ActionN8NWebhook,
		Success: true,
		Result:  map[string]any{"staged": true, "webhook_url": srv.URL},
	}}, rules.Context{}, map[string]any{"entity_id": "light.kitchen"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "light.kitchen", payload["entity_id"])
}

func TestDeliverSkipsUnstagedAndFailedResults(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	f := New(nil, "announce", "service")
	f.Deliver("u1", []models.ActionResult{
		// applied by the engine itself, nothing to forward
		{Type: models.ActionCreateTask, Success: true, Result: map[string]any{"task_id": "t1"}},
		// failed action, never delivered
		{Type: models.ActionN8NWebhook, Success: false, Result: map[string]any{"staged": true, "webhook_url": srv.URL}},
	}, rules.Context{}, nil)

	assert.Equal(t, 0, calls)
}

func TestPostWebhookRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(nil, "announce", "service")
	assert.Error(t, f.postWebhook(srv.URL, "", rules.Context{}, nil))
	assert.Error(t, f.postWebhook("", "", rules.Context{}, nil))
}
