package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/noisestream/internal/events"
)

// registerSSERoutes registers the stream event SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Stream state changes and monitor restarts. The current state of every stream is sent on connect.",
		Tags:        []string{"events"},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"stream-restarted":     events.StreamRestartedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeStreamEvents(s.eventBus, eventCh)
		defer unsubscribe()

		now := time.Now().Format(time.RFC3339)
		for _, info := range s.registry.List() {
			snapshot := events.StreamStateChangedEvent{
				StreamID:      info.StreamID,
				State:         info.State.String(),
				PreviousState: info.State.String(),
				RunID:         info.RunID,
				PID:           info.PID,
				Error:         info.ErrorMessage,
				Timestamp:     now,
			}
			if err := send.Data(snapshot); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
