package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citylab/agora/internal/models"
)

func TestFeedbackReceivedDelivers(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: %q", ct)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- payload
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	n.FeedbackReceived(&models.Feedback{ID: "f1", Category: models.FeedbackBug, Message: "the map widget crashes"})

	select {
	case payload := <-received:
		if payload["event"] != "feedback.received" {
			t.Errorf("event: %v", payload["event"])
		}
		fb, _ := payload["feedback"].(map[string]any)
		if fb["id"] != "f1" {
			t.Errorf("feedback: %v", payload["feedback"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestFeedbackReceivedWithoutURL(t *testing.T) {
	n := NewWebhookNotifier("", nil)
	// must not panic or block
	n.FeedbackReceived(&models.Feedback{ID: "f1", Category: models.FeedbackIdea, Message: "m"})
}

func TestFeedbackReceivedFailureIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	n.FeedbackReceived(&models.Feedback{ID: "f1", Category: models.FeedbackIdea, Message: "m"})
	// delivery happens in the background; nothing to assert beyond no panic
	time.Sleep(50 * time.Millisecond)
}
