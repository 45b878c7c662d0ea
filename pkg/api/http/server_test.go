package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/internal/application/cancellation"
	"github.com/eenlars/lucky-sub006/internal/application/orchestrator"
	"github.com/eenlars/lucky-sub006/internal/application/runner"
	"github.com/eenlars/lucky-sub006/internal/application/validation"
	eventsmemory "github.com/eenlars/lucky-sub006/pkg/adapters/events/memory"
	"github.com/eenlars/lucky-sub006/pkg/adapters/metrics/noop"
	storagememory "github.com/eenlars/lucky-sub006/pkg/adapters/storage/memory"
	httpapi "github.com/eenlars/lucky-sub006/pkg/api/http"
	"github.com/eenlars/lucky-sub006/pkg/domain"
)

type echoRunner struct{}

func (echoRunner) Run(_ context.Context, req runner.Request) (*domain.RunResult, error) {
	return &domain.RunResult{
		InvocationID: req.InvocationID,
		IOIndex:      req.IOIndex,
		Output:       req.Input,
		Cost:         0.01,
	}, nil
}

func newTestServer(t *testing.T) (*httpapi.Server, *storagememory.InMemoryInvocationStore) {
	t.Helper()
	logger := zap.NewNop()
	store := storagememory.NewInMemoryInvocationStore()
	coordinator := cancellation.NewCoordinator(
		store,
		eventsmemory.NewInMemoryEventBus(),
		noop.NewCollector(),
		logger,
		time.Hour,
	)
	mgr := orchestrator.NewManager(orchestrator.ManagerConfig{
		Validator:   validation.NewValidator(validation.Options{}),
		Runner:      echoRunner{},
		Coordinator: coordinator,
		Persistence: storagememory.NewInMemoryPersistence(),
		EventBus:    eventsmemory.NewInMemoryEventBus(),
		Metrics:     noop.NewCollector(),
		Logger:      logger,
		EnabledModels: []domain.ModelInfo{
			{ID: "haiku", Gateway: "anthropic", PricingTier: domain.TierLow,
				Intelligence: 5, Speed: domain.SpeedFast, RuntimeEnabled: true},
		},
	})
	return httpapi.NewServer(&httpapi.Config{
		Port:         0,
		Orchestrator: mgr,
		Invocations:  store,
		Logger:       logger,
	}), store
}

func doJSON(t *testing.T, srv *httpapi.Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func validWorkflow() map[string]interface{} {
	return map[string]interface{}{
		"entryNodeId": "a",
		"nodes": []map[string]interface{}{
			{
				"nodeId":       "a",
				"description":  "node a",
				"systemPrompt": "you are a",
				"modelName":    "low",
				"mcpTools":     []string{},
				"codeTools":    []string{},
				"handOffs":     []string{domain.TerminalNodeID},
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestValidateWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("valid config", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/v1/workflows/validate", map[string]interface{}{
			"workflow": validWorkflow(),
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp httpapi.ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Empty(t, resp.Findings)
	})

	t.Run("invalid config reports findings", func(t *testing.T) {
		wf := validWorkflow()
		wf["entryNodeId"] = "ghost"
		w := doJSON(t, srv, http.MethodPost, "/api/v1/workflows/validate", map[string]interface{}{
			"workflow": wf,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp httpapi.ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.NotEmpty(t, resp.Findings)
	})

	t.Run("missing workflow is a bad request", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/v1/workflows/validate", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	})
}

func TestSubmitWorkflow(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("accepted", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/v1/workflows", map[string]interface{}{
			"workflow": validWorkflow(),
			"cases": []map[string]string{
				{"input": "one", "expected": "one"},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp httpapi.SubmitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.WorkflowID)
		assert.Equal(t, "submitted", resp.Status)

		// The workflow runs in the background and reaches evaluation.
		require.Eventually(t, func() bool {
			get := doJSON(t, srv, http.MethodGet, "/api/v1/workflows/"+resp.WorkflowID, nil)
			if get.Code != http.StatusOK {
				return false
			}
			var status orchestrator.WorkflowStatus
			if err := json.Unmarshal(get.Body.Bytes(), &status); err != nil {
				return false
			}
			return status.Evaluated
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		wf := validWorkflow()
		wf["entryNodeId"] = "ghost"
		w := doJSON(t, srv, http.MethodPost, "/api/v1/workflows", map[string]interface{}{
			"workflow": wf,
			"cases": []map[string]string{
				{"input": "one", "expected": "one"},
			},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "SUBMISSION_FAILED")
	})
}

func TestGetWorkflowNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/workflows/wf-ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestInvocationEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.InvocationRecord{
		InvocationID: "inv-1",
		State:        domain.InvocationRunning,
		Desired:      domain.InvocationRunning,
		CreatedAt:    time.Now().UTC(),
	}, time.Hour))

	t.Run("list", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodGet, "/api/v1/invocations", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "inv-1")
		assert.Contains(t, w.Body.String(), `"total":1`)
	})

	t.Run("get existing", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodGet, "/api/v1/invocations/inv-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rec domain.InvocationRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, domain.InvocationRunning, rec.State)
	})

	t.Run("get missing", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodGet, "/api/v1/invocations/inv-ghost", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCancelInvocationAlwaysAnswers(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/invocations/inv-ghost/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.CancelResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.CancelStatusNotFound, result.Status)
	assert.Equal(t, "inv-ghost", result.InvocationID)
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/%s", "nope"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
