package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, discardLogger()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestNewWorkerSkipsIncompleteRegistrations(t *testing.T) {
	task, err := NewReconcileTask(testClock())
	require.NoError(t, err)
	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Handlers:  []TaskHandler{{Type: TaskPostingPost}},
		Cron:      []CronRegistration{{Spec: "", Task: task}},
	})
	require.NoError(t, err)
	require.NotNil(t, worker)
}
