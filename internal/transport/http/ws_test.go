package http_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"raven-iq-service/internal/domain"
)

func wsURL(server *testServer) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/admin/ws"
}

func sessionHeader(t *testing.T, server *testServer) http.Header {
	t.Helper()
	client := adminClient(t, server)
	base, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	header := http.Header{}
	for _, cookie := range client.Jar.Cookies(base) {
		header.Add("Cookie", cookie.String())
	}
	return header
}

func TestFeedRejectsAnonymous(t *testing.T) {
	server := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err == nil {
		t.Fatalf("anonymous dial must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestFeedStreamsNewResults(t *testing.T) {
	server := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), sessionHeader(t, server))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handler subscribes after the handshake completes; give it a
	// moment before publishing.
	time.Sleep(50 * time.Millisecond)

	created, err := server.results.CreateDirect(context.Background(), domain.AnswerSheet{
		Answers:      validSheet()["answers"].([]int),
		Age:          25,
		UserName:     "Grace Hopper",
		TestDuration: 1420,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message struct {
		Type    string `json:"type"`
		Payload struct {
			ID    string `json:"id"`
			Score int    `json:"score"`
			Tier  int    `json:"tier"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("read feed message: %v", err)
	}
	if message.Type != "result" {
		t.Fatalf("message type = %q", message.Type)
	}
	if message.Payload.ID != created.ID || message.Payload.Score != created.Score {
		t.Fatalf("payload = %+v, want id %s score %d", message.Payload, created.ID, created.Score)
	}
	if message.Payload.Tier != int(domain.TierCertificate) {
		t.Fatalf("payload tier = %d", message.Payload.Tier)
	}
}
