package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"raven-iq-service/internal/app"
	"raven-iq-service/internal/domain"
)

// FeedHandler streams freshly persisted results to dashboard sessions so
// the admin page can refresh without polling.
type FeedHandler struct {
	feed     *app.Feed
	isAdmin  func(*http.Request) bool
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewFeedHandler(feed *app.Feed, isAdmin func(*http.Request) bool, log *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feed:    feed,
		isAdmin: isAdmin,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type feedMessage struct {
	Type    string      `json:"type"`
	Payload feedPayload `json:"payload"`
}

type feedPayload struct {
	ID         string `json:"id"`
	Score      int    `json:"score"`
	UserName   string `json:"userName,omitempty"`
	Tier       int    `json:"tier"`
	Campaign   string `json:"campaignSlug,omitempty"`
	SubmitTime int64  `json:"submitTime"`
}

func (h *FeedHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/ws", h.serve)
}

func (h *FeedHandler) serve(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe()
	defer cancel()

	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case result, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(feedEnvelope(result)); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				return
			}
		case <-readerGone:
			return
		case <-time.After(30 * time.Second):
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func feedEnvelope(result domain.Result) feedMessage {
	return feedMessage{
		Type: "result",
		Payload: feedPayload{
			ID:         result.ID,
			Score:      result.Score,
			UserName:   result.UserName,
			Tier:       int(result.Tier),
			Campaign:   result.CampaignSlug,
			SubmitTime: result.SubmitTime,
		},
	}
}
