package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/noisestream/internal/api/models"
	"github.com/smazurov/noisestream/internal/streams"
	"github.com/smazurov/noisestream/internal/version"
)

// handleIndex serves the service description. It lives outside Huma so it
// matches "/" exactly instead of acting as a catch-all.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	status := s.registry.Status()
	body := models.IndexData{
		Name:           models.ServiceName,
		Description:    models.ServiceDescription,
		Version:        version.Version,
		Endpoints:      models.DefaultEndpoints(),
		AvailableNoise: s.registry.Noises(),
		ActiveStreams:  status.RunningStreams,
		TotalStreams:   status.TotalStreams,
	}
	writeJSON(w, r, http.StatusOK, body)
}

// registerStreamRoutes registers the status and stream control endpoints.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Status",
		Description: "Registry status summary with every stream record",
		Tags:        []string{"status"},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{
			Body: models.StatusData{
				HLSDir:        s.registry.HLSDir(),
				StatusSummary: s.registry.Status(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health",
		Description: "Health of every stream based on process liveness and playlist freshness",
		Tags:        []string{"status"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{Body: s.registry.Health()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-all-streams",
		Method:        http.MethodPost,
		Path:          "/stream/start",
		Summary:       "Start All Streams",
		Description:   "Start a stream for every configured noise color",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.BatchStartResponse, error) {
		return &models.BatchStartResponse{Body: s.registry.StartAll()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-all-streams",
		Method:        http.MethodPost,
		Path:          "/stream/stop",
		Summary:       "Stop All Streams",
		Description:   "Stop every live stream",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{401},
		Security:      withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.BatchStopResponse, error) {
		return &models.BatchStopResponse{Body: s.registry.StopAll()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/stream/{stream_id}",
		Summary:     "Get Stream",
		Description: "Get the record of one stream",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.StreamIDInput) (*models.StreamInfoResponse, error) {
		info, ok := s.registry.Get(input.StreamID)
		if !ok {
			return nil, huma.Error404NotFound("Stream not found")
		}
		return &models.StreamInfoResponse{Body: info}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-health",
		Method:      http.MethodGet,
		Path:        "/stream/{stream_id}/health",
		Summary:     "Get Stream Health",
		Description: "Get the health evaluation of one stream",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.StreamIDInput) (*models.StreamHealthResponse, error) {
		health, ok := s.registry.StreamHealth(input.StreamID)
		if !ok {
			return nil, huma.Error404NotFound("Stream not found")
		}
		return &models.StreamHealthResponse{Body: health}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-stream",
		Method:        http.MethodPost,
		Path:          "/stream/{stream_id}/start",
		Summary:       "Start Stream",
		Description:   "Start one stream, creating its record for a configured noise color",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{400, 401, 404, 500},
		Security:      withAuth(),
	}, func(_ context.Context, input *models.StreamIDInput) (*models.StreamResultResponse, error) {
		res := s.registry.Start(input.StreamID)
		if err := res.Err(); err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResultResponse{Body: res}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-stream",
		Method:        http.MethodPost,
		Path:          "/stream/{stream_id}/stop",
		Summary:       "Stop Stream",
		Description:   "Stop one stream",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{401, 404, 500},
		Security:      withAuth(),
	}, func(_ context.Context, input *models.StreamIDInput) (*models.StreamResultResponse, error) {
		res := s.registry.Stop(input.StreamID)
		if err := res.Err(); err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResultResponse{Body: res}, nil
	})
}

// mapStreamError maps domain errors to HTTP errors.
func (s *Server) mapStreamError(err error) error {
	var streamErr *streams.StreamError
	if !errors.As(err, &streamErr) {
		return huma.Error500InternalServerError("internal server error", err)
	}
	switch {
	case errors.Is(err, streams.ErrStreamNotFound):
		return huma.Error404NotFound(streamErr.Message)
	case errors.Is(err, streams.ErrInvalidNoise):
		return huma.Error400BadRequest(streamErr.Message)
	default:
		s.logger.Warn("Stream operation failed", "code", streamErr.Code, "error", streamErr.Message)
		return huma.Error500InternalServerError(streamErr.Message)
	}
}

// writeJSON writes body for handlers served outside Huma.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeProblem writes an RFC 9457 error body matching Huma's error model.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
