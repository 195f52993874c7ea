package slackbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

func newMockSlackServer(t *testing.T, ok bool) (*httptest.Server, *[]map[string]string) {
	t.Helper()
	var posts []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		switch path {
		case "chat.postMessage":
			_ = r.ParseForm()
			posts = append(posts, map[string]string{
				"channel": r.PostForm.Get("channel"),
				"text":    r.PostForm.Get("text"),
			})
			if !ok {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": r.PostForm.Get("channel"), "ts": "1.2"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(server.Close)
	return server, &posts
}

func TestNotifierPostsDigest(t *testing.T) {
	server, posts := newMockSlackServer(t, true)
	n := NewNotifier("xoxb-test", "C123", slack.OptionAPIURL(server.URL+"/api/"))

	if err := n.Notify(context.Background(), "Закрыто: 3"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(*posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(*posts))
	}
	got := (*posts)[0]
	if got["channel"] != "C123" || got["text"] != "Закрыто: 3" {
		t.Fatalf("unexpected post: %+v", got)
	}
	if n.Name() != "slack" {
		t.Fatalf("unexpected name %q", n.Name())
	}
}

func TestNotifierReportsSlackError(t *testing.T) {
	server, _ := newMockSlackServer(t, false)
	n := NewNotifier("xoxb-test", "C404", slack.OptionAPIURL(server.URL+"/api/"))

	err := n.Notify(context.Background(), "digest")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestNotifierRequiresChannel(t *testing.T) {
	if err := NewNotifier("xoxb-test", "").Notify(context.Background(), "digest"); err == nil {
		t.Fatal("expected error without channel")
	}
}
