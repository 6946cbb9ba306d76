// Package chatsource implements the chat transport source: a
// MessageEvent stream plus channel-metadata lookups, with a
// WebSocket-backed reference implementation.
package chatsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RawMessageObject carries the engagement counters: forwards,
// reactions[*].count, replies.replies, views.
type RawMessageObject struct {
	Forwards  int             `json:"forwards"`
	Reactions []Reaction      `json:"reactions"`
	Replies   *RepliesSummary `json:"replies,omitempty"`
	Views     int             `json:"views"`
}

// Reaction is one emoji/count pair on a message.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// RepliesSummary reports the reply-thread depth.
type RepliesSummary struct {
	Replies int `json:"replies"`
}

// MessageEvent is one chat message as seen by the pipeline.
type MessageEvent struct {
	ChannelID     string
	ChannelName   string
	MessageID     string
	MessageText   string
	Timestamp     time.Time
	SenderID      *string
	RawMessage    RawMessageObject
}

// ChannelInfo is the metadata returned by GetChannelInfo.
type ChannelInfo struct {
	ID                 string
	Title              string
	Username           string
	ParticipantsCount  int
	IsBroadcast        bool
}

// Source is the chat transport contract every chat backend implements.
type Source interface {
	Stream(ctx context.Context) (<-chan MessageEvent, error)
	// Backfill returns historical messages for a channel in
	// reverse-chronological order unless reverse is true.
	Backfill(ctx context.Context, channelID string, limit int, reverse bool) ([]MessageEvent, error)
	IsChannelAccessible(ctx context.Context, channelID string) (bool, error)
	GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
}

// WebSocketSource is a reference Source implementation speaking a
// JSON-over-WebSocket chat protocol via gorilla/websocket.
type WebSocketSource struct {
	url string

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool

	channelCache map[string]ChannelInfo
}

// NewWebSocketSource builds a chat source against a WebSocket endpoint.
func NewWebSocketSource(wsURL string) *WebSocketSource {
	return &WebSocketSource{
		url:          wsURL,
		channelCache: make(map[string]ChannelInfo),
	}
}

type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wireMessage struct {
	ChannelID   string            `json:"channel_id"`
	ChannelName string            `json:"channel_name"`
	MessageID   string            `json:"message_id"`
	MessageText string            `json:"message_text"`
	Timestamp   time.Time         `json:"timestamp"`
	SenderID    *string           `json:"sender_id,omitempty"`
	Raw         RawMessageObject  `json:"raw_message_object"`
}

// connect dials the WebSocket endpoint if not already connected.
func (s *WebSocketSource) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isConnected {
		return nil
	}

	u, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid chat source url: %w", err)
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connecting chat source: %w", err)
	}
	s.conn = conn
	s.isConnected = true
	return nil
}

// Stream opens a long-lived connection and emits MessageEvents as
// they arrive until ctx is cancelled.
func (s *WebSocketSource) Stream(ctx context.Context) (<-chan MessageEvent, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	out := make(chan MessageEvent, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Msg("chat source read failed, stopping stream")
				return
			}

			var env wireEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Debug().Err(err).Msg("chat source sent malformed envelope, skipping")
				continue
			}
			if env.Type != "message" {
				continue
			}

			var wm wireMessage
			if err := json.Unmarshal(env.Payload, &wm); err != nil {
				log.Debug().Err(err).Msg("chat source sent malformed message, skipping")
				continue
			}

			select {
			case out <- MessageEvent{
				ChannelID:   wm.ChannelID,
				ChannelName: wm.ChannelName,
				MessageID:   wm.MessageID,
				MessageText: wm.MessageText,
				Timestamp:   wm.Timestamp,
				SenderID:    wm.SenderID,
				RawMessage:  wm.Raw,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type backfillRequest struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	Limit     int    `json:"limit"`
	Reverse   bool   `json:"reverse"`
}

type backfillResponse struct {
	Messages []wireMessage `json:"messages"`
}

// Backfill requests historical messages over the same connection,
// reverse-chronological unless reverse is requested.
func (s *WebSocketSource) Backfill(ctx context.Context, channelID string, limit int, reverse bool) ([]MessageEvent, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	req := backfillRequest{Type: "backfill", ChannelID: channelID, Limit: limit, Reverse: reverse}
	s.mu.Lock()
	err := s.conn.WriteJSON(req)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("requesting backfill: %w", err)
	}

	var resp backfillResponse
	err = s.conn.ReadJSON(&resp)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("reading backfill response: %w", err)
	}

	events := make([]MessageEvent, 0, len(resp.Messages))
	for _, wm := range resp.Messages {
		events = append(events, MessageEvent{
			ChannelID:   wm.ChannelID,
			ChannelName: wm.ChannelName,
			MessageID:   wm.MessageID,
			MessageText: wm.MessageText,
			Timestamp:   wm.Timestamp,
			SenderID:    wm.SenderID,
			RawMessage:  wm.Raw,
		})
	}
	return events, nil
}

type channelInfoRequest struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
}

type channelInfoResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Username          string `json:"username"`
	ParticipantsCount int    `json:"participants_count"`
	IsBroadcast       bool   `json:"is_broadcast"`
	Accessible        bool   `json:"accessible"`
}

// GetChannelInfo fetches and caches channel metadata.
func (s *WebSocketSource) GetChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	s.mu.RLock()
	if info, ok := s.channelCache[channelID]; ok {
		s.mu.RUnlock()
		return info, nil
	}
	s.mu.RUnlock()

	if err := s.connect(ctx); err != nil {
		return ChannelInfo{}, err
	}

	s.mu.Lock()
	err := s.conn.WriteJSON(channelInfoRequest{Type: "channel_info", ChannelID: channelID})
	if err != nil {
		s.mu.Unlock()
		return ChannelInfo{}, fmt.Errorf("requesting channel info: %w", err)
	}
	var resp channelInfoResponse
	err = s.conn.ReadJSON(&resp)
	s.mu.Unlock()
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("reading channel info response: %w", err)
	}

	info := ChannelInfo{
		ID:                resp.ID,
		Title:             resp.Title,
		Username:          resp.Username,
		ParticipantsCount: resp.ParticipantsCount,
		IsBroadcast:       resp.IsBroadcast,
	}

	s.mu.Lock()
	s.channelCache[channelID] = info
	s.mu.Unlock()
	return info, nil
}

// IsChannelAccessible reports whether the source can currently read
// the given channel.
func (s *WebSocketSource) IsChannelAccessible(ctx context.Context, channelID string) (bool, error) {
	if err := s.connect(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	err := s.conn.WriteJSON(channelInfoRequest{Type: "channel_accessible", ChannelID: channelID})
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("requesting channel accessibility: %w", err)
	}
	var resp channelInfoResponse
	err = s.conn.ReadJSON(&resp)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("reading channel accessibility response: %w", err)
	}
	return resp.Accessible, nil
}
