package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams workflow and node events over WebSocket connections.
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleEventStream upgrades the connection and forwards workflow and
// node events to the client. An optional ?invocation= query parameter
// narrows the stream to one invocation.
func (h *Handler) HandleEventStream(c *gin.Context) {
	invocationFilter := c.Query("invocation")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("invocation_filter", invocationFilter),
		zap.String("client", c.ClientIP()))

	eventChan := make(chan domain.Event, 16)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	subs := h.subscribe(ctx, eventChan)
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if invocationFilter != "" && event.InvocationID != invocationFilter {
				continue
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// subscribe attaches the stream to the workflow and node event topics.
func (h *Handler) subscribe(ctx context.Context, ch chan<- domain.Event) []ports.Subscription {
	handler := func(hctx context.Context, event domain.Event) error {
		select {
		case ch <- event:
		case <-hctx.Done():
			return hctx.Err()
		default:
			// Slow client; dropping is better than blocking the bus.
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	topics := []string{domain.TopicWorkflowEvents, domain.TopicNodeEvents}
	subs := make([]ports.Subscription, 0, len(topics))
	for _, topic := range topics {
		sub, err := h.eventBus.Subscribe(ctx, topic, handler)
		if err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}
