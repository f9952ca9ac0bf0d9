package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"highlight_bot/internal/model"
)

const (
	opMessageCreate = "MESSAGE_CREATE"

	reconnectDelay = 5 * time.Second
	statsInterval  = 30 * time.Second
)

// Handler receives inbound message events from the stream.
type Handler interface {
	HandleMessage(ctx context.Context, msg model.Message)
}

// Subscriber connects to the platform's event gateway and forwards
// message-create events to its handler.
type Subscriber struct {
	url     string
	token   string
	handler Handler
	log     *slog.Logger
}

// NewSubscriber creates a Subscriber for the given gateway URL.
func NewSubscriber(url, token string, handler Handler, log *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     url,
		token:   token,
		handler: handler,
		log:     log,
	}
}

// Start connects to the gateway and processes events until ctx is
// cancelled. It reconnects automatically on transient errors; in-flight
// notification deliveries are allowed to fail during the gap rather than
// being queued.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.log.Error("gateway connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bot "+s.token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer func() { _ = conn.Close() }()

	s.log.Info("connected to gateway", "url", s.url)

	var eventsReceived, messagesHandled int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		eventsReceived++

		op, msg, err := parseEvent(payload)
		if err != nil {
			s.log.Error("failed to parse event", "error", err)
			continue
		}

		if op == opMessageCreate {
			messagesHandled++
			s.handler.HandleMessage(ctx, msg)
		}

		if time.Since(lastStatsLog) >= statsInterval {
			s.log.Info("gateway stats",
				"events_received", eventsReceived,
				"messages_handled", messagesHandled,
			)
			lastStatsLog = time.Now()
		}
	}
}

// parseEvent decodes one gateway frame. Only the fields the pipeline needs
// are read; the rest of the envelope is ignored.
func parseEvent(data []byte) (string, model.Message, error) {
	var raw struct {
		Op string          `json:"op"`
		D  json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", model.Message{}, fmt.Errorf("unmarshal event: %w", err)
	}

	if raw.Op != opMessageCreate {
		return raw.Op, model.Message{}, nil
	}

	var wire wireMessage
	if err := json.Unmarshal(raw.D, &wire); err != nil {
		return raw.Op, model.Message{}, fmt.Errorf("unmarshal message event: %w", err)
	}
	return raw.Op, wire.toModel(), nil
}
