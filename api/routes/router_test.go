package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/benchfab/circuitstock/pkg/config"
	"github.com/benchfab/circuitstock/pkg/enums"
	"github.com/benchfab/circuitstock/pkg/logger"
	"github.com/benchfab/circuitstock/pkg/types"
)

type publishedJob struct {
	job enums.JobType
	id  uuid.UUID
}

type fakePublisher struct {
	published []publishedJob
}

func (f *fakePublisher) PublishJob(_ context.Context, job enums.JobType, id uuid.UUID) error {
	f.published = append(f.published, publishedJob{job: job, id: id})
	return nil
}

func newTestRouter(t *testing.T, jobs *fakePublisher) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(cfg, logg, nil, nil, nil, jobs, nil, nil)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, &fakePublisher{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestTriggerEndpointsPublishJobs(t *testing.T) {
	cases := []struct {
		path string
		job  enums.JobType
	}{
		{"/api/v1/projects/versions/%s/sync", enums.JobSyncVersion},
		{"/api/v1/builds/%s/clear", enums.JobClearBuild},
		{"/api/v1/builds/%s/complete", enums.JobCompleteBuild},
		{"/api/v1/builds/%s/cancel", enums.JobCancelBuild},
		{"/api/v1/orders/%s/complete", enums.JobCompleteOrder},
	}

	for _, tc := range cases {
		jobs := &fakePublisher{}
		router := newTestRouter(t, jobs)
		id := uuid.New()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf(tc.path, id), nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("%s: status = %d", tc.path, w.Code)
			continue
		}
		if len(jobs.published) != 1 || jobs.published[0].job != tc.job || jobs.published[0].id != id {
			t.Errorf("%s: published = %+v", tc.path, jobs.published)
		}

		var body types.SuccessEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Errorf("%s: decode body: %v", tc.path, err)
		}
	}
}

func TestVersionCreateRejectsInvalidBody(t *testing.T) {
	router := newTestRouter(t, &fakePublisher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(
		http.MethodPost,
		fmt.Sprintf("/api/v1/projects/%s/versions", uuid.New()),
		strings.NewReader(`{"revision": 1}`),
	)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestTriggerRejectsMalformedID(t *testing.T) {
	jobs := &fakePublisher{}
	router := newTestRouter(t, jobs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/builds/not-a-uuid/clear", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if len(jobs.published) != 0 {
		t.Fatalf("no job should publish for a bad id: %+v", jobs.published)
	}
}
