package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/handler"
	"github.com/proctorhub/assessment-backend/internal/middleware"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/repository"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/proctorhub/assessment-backend/internal/validator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
	Metadata   response.Metadata    `json:"metadata"`
}

type testEnv struct {
	engine    *gin.Engine
	catalog   *repository.MemoryExamCatalog
	exam      model.Exam
	mcqID     uuid.UUID
	textID    uuid.UUID
	candidate uuid.UUID

	candidateToken string
	adminToken     string

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()
	validator.Setup()

	env := &testEnv{
		catalog:   repository.NewMemoryExamCatalog(),
		mcqID:     uuid.New(),
		textID:    uuid.New(),
		candidate: uuid.New(),
		now:       time.Now().UTC(),
	}
	env.exam = model.Exam{
		ID:              uuid.New(),
		Title:           "Platform Engineering",
		DurationMinutes: 20,
		Active:          true,
		Questions: []model.Question{
			{
				ID:              env.mcqID,
				Prompt:          "Pick b",
				QuestionType:    model.QuestionTypeMCQ,
				Options:         []model.Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
				CorrectOptionID: "b",
			},
			{ID: env.textID, Prompt: "Explain", QuestionType: model.QuestionTypeScenario},
		},
	}
	env.catalog.Put(env.exam)
	env.catalog.Grant(env.candidate, env.exam.ID)

	log := zerolog.Nop()
	store := repository.NewMemoryAttemptStore()
	attempts := service.NewAttemptService(store, env.catalog, env.catalog, nil, log, service.WithClock(env.clock))
	dashboard := service.NewDashboardService(store, env.catalog)
	tokens := service.NewTokenService("router-test-secret", time.Hour)

	var err error
	env.candidateToken, err = tokens.IssueToken(env.candidate, service.TokenTypeCandidate)
	require.NoError(t, err)
	env.adminToken, err = tokens.IssueToken(uuid.New(), service.TokenTypeAdmin)
	require.NoError(t, err)

	env.engine = SetupRouter(tokens, &Handlers{
		Assessment: handler.NewAssessmentHandler(attempts, log),
		Candidate:  handler.NewCandidateHandler(dashboard, log),
		Admin:      handler.NewAdminHandler(dashboard, log),
		WS:         handler.NewWSHandler(attempts, log, nil),
	}, limiter, &config.Config{GinMode: gin.TestMode})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (e *testEnv) start(t *testing.T) string {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/v1/assessment/start", e.candidateToken,
		map[string]string{"examId": e.exam.ID.String()})
	require.Equal(t, http.StatusCreated, status)

	var started model.StartAttemptResponse
	require.NoError(t, json.Unmarshal(env.Data, &started))
	return started.AttemptID.String()
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Metadata.RequestID)
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(response.HeaderRequestID, "trace-123")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get(response.HeaderRequestID))
	assert.Contains(t, rec.Body.String(), `"request_id":"trace-123"`)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   response.ErrCode
	}{
		{"missing token", "/api/v1/candidate/dashboard", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", "/api/v1/candidate/dashboard", "nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"admin on candidate route", "/api/v1/candidate/dashboard", env.adminToken, http.StatusForbidden, response.ErrCandidateAccessOnly},
		{"candidate on admin route", "/api/v1/admin/overview", env.candidateToken, http.StatusForbidden, response.ErrAdminAccessOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestStartErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	stranger, err := service.NewTokenService("router-test-secret", time.Hour).IssueToken(uuid.New(), service.TokenTypeCandidate)
	require.NoError(t, err)

	status, body := env.do(t, http.MethodPost, "/api/v1/assessment/start", stranger,
		map[string]string{"examId": env.exam.ID.String()})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, response.ErrExamAccessRequired, body.Error.Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/assessment/start", env.candidateToken,
		map[string]string{"examId": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, response.ErrExamNotFound, body.Error.Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/assessment/start", env.candidateToken,
		map[string]string{"examId": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "examId")
}

func TestAssessmentLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t)
	base := "/api/v1/assessment/" + id

	status, body := env.do(t, http.MethodGet, base, env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	state := decodeData[model.AttemptState](t, body)
	assert.Equal(t, model.AttemptStatusInProgress, state.Status)
	assert.Len(t, state.Questions, 2)
	assert.NotContains(t, string(body.Data), "correctOptionId")

	status, _ = env.do(t, http.MethodPost, base+"/answer", env.candidateToken,
		map[string]string{"questionId": env.mcqID.String(), "selectedOptionId": "b"})
	assert.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/answer", env.candidateToken,
		map[string]string{"questionId": env.textID.String()})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "selectedOptionId")

	status, body = env.do(t, http.MethodPost, base+"/proctor-event", env.candidateToken,
		map[string]string{"type": "window_blur"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Fields, "type")

	status, body = env.do(t, http.MethodPost, base+"/proctor-event", env.candidateToken,
		map[string]string{"type": "fullscreen_exit"})
	require.Equal(t, http.StatusOK, status)
	outcome := decodeData[model.ViolationOutcome](t, body)
	assert.True(t, outcome.Warning)
	assert.Equal(t, 4, outcome.RemainingWarnings)

	status, body = env.do(t, http.MethodPost, base+"/submit", env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	result := decodeData[model.SubmitResult](t, body)
	assert.Equal(t, model.AttemptStatusCompleted, result.Status)
	assert.Equal(t, 50.0, result.Score)
	assert.Len(t, result.Violations, 1)

	status, body = env.do(t, http.MethodPost, base+"/submit", env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	again := decodeData[model.SubmitResult](t, body)
	assert.True(t, again.AlreadySubmitted)
	assert.Equal(t, 50.0, again.Score)

	status, body = env.do(t, http.MethodPost, base+"/answer", env.candidateToken,
		map[string]string{"questionId": env.mcqID.String(), "selectedOptionId": "a"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.ErrAttemptClosed, body.Error.Code)
	assert.Equal(t, model.AttemptStatusCompleted, body.Error.AttemptStatus)
	assert.False(t, body.Error.Retryable)
}

func TestCriticalViolationClosesAttempt(t *testing.T) {
	env := newTestEnv(t, nil)
	base := "/api/v1/assessment/" + env.start(t)

	status, body := env.do(t, http.MethodPost, base+"/proctor-event", env.candidateToken,
		map[string]string{"type": "screen_minimize"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decodeData[model.ViolationOutcome](t, body).Terminated)

	status, body = env.do(t, http.MethodPost, base+"/proctor-event", env.candidateToken,
		map[string]string{"type": "face_missing"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.ErrAttemptClosed, body.Error.Code)
	assert.Equal(t, model.AttemptStatusTerminated, body.Error.AttemptStatus)

	status, body = env.do(t, http.MethodPost, base+"/submit", env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	result := decodeData[model.SubmitResult](t, body)
	assert.Equal(t, model.AttemptStatusTerminated, result.Status)
	assert.Zero(t, result.Score)
}

func TestLateAnswerReturnsTimeOver(t *testing.T) {
	env := newTestEnv(t, nil)
	base := "/api/v1/assessment/" + env.start(t)

	env.advance(21 * time.Minute)
	status, body := env.do(t, http.MethodPost, base+"/answer", env.candidateToken,
		map[string]string{"questionId": env.mcqID.String(), "selectedOptionId": "b"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.ErrTimeOver, body.Error.Code)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, body.Error.AttemptStatus)

	status, body = env.do(t, http.MethodGet, base, env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.AttemptStatusAutoSubmitted, decodeData[model.AttemptState](t, body).Status)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	env := newTestEnv(t, nil)
	attemptID := env.start(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/assessment/"+attemptID, env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), `"answers":[]`)

	status, body = env.do(t, http.MethodPost, "/api/v1/assessment/"+attemptID+"/submit", env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), `"violations":[]`)
	assert.NotContains(t, string(body.Data), "null")
}

func TestAttemptsAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t)
	other, err := service.NewTokenService("router-test-secret", time.Hour).IssueToken(uuid.New(), service.TokenTypeCandidate)
	require.NoError(t, err)

	status, body := env.do(t, http.MethodGet, "/api/v1/assessment/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, response.ErrAttemptNotFound, body.Error.Code)

	status, body = env.do(t, http.MethodPost, "/api/v1/assessment/"+id+"/submit", other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, response.ErrAttemptNotFound, body.Error.Code)

	status, body = env.do(t, http.MethodGet, "/api/v1/assessment/not-a-uuid", env.candidateToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.ErrInvalidID, body.Error.Code)
}

func TestDashboards(t *testing.T) {
	env := newTestEnv(t, nil)
	env.start(t)
	env.advance(time.Minute)
	env.start(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/candidate/dashboard", env.candidateToken, nil)
	require.Equal(t, http.StatusOK, status)
	dash := decodeData[model.CandidateDashboard](t, body)
	assert.Equal(t, 2, dash.Summary.TotalAttempts)
	assert.Equal(t, env.exam.Title, dash.Attempts[0].Exam.Title)

	status, body = env.do(t, http.MethodGet, "/api/v1/admin/overview", env.adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	overview := decodeData[model.AdminOverview](t, body)
	assert.Equal(t, 2, overview.Stats.InProgress)
	assert.Len(t, overview.LiveMonitoring, 2)

	status, body = env.do(t, http.MethodGet, "/api/v1/admin/attempts?page=1&per_page=1", env.adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 2, body.Pagination.TotalItems)
	assert.Equal(t, 2, body.Pagination.TotalPages)
	assert.Len(t, decodeData[[]model.AttemptSummary](t, body), 1)
}

func TestStartIsRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, limiter)

	env.start(t)
	status, body := env.do(t, http.MethodPost, "/api/v1/assessment/start", env.candidateToken,
		map[string]string{"examId": env.exam.ID.String()})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, response.ErrRateLimitExceeded, body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

type streamFrame struct {
	Event     string              `json:"event"`
	RequestID string              `json:"requestId"`
	Data      json.RawMessage     `json:"data"`
	Error     *response.ErrorBody `json:"error"`
}

func TestAttemptStream(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.start(t)

	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/assessment/" + id + "/stream?token=" + env.candidateToken

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	roundTrip := func(action, requestID string, data any) streamFrame {
		t.Helper()
		frame := map[string]any{"action": action, "requestId": requestID}
		if data != nil {
			frame["data"] = data
		}
		require.NoError(t, conn.WriteJSON(frame))
		var out streamFrame
		require.NoError(t, conn.ReadJSON(&out))
		assert.Equal(t, requestID, out.RequestID)
		return out
	}

	var first streamFrame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "state", first.Event)

	assert.Equal(t, "pong", roundTrip("ping", "r1", nil).Event)

	saved := roundTrip("answer", "r2", map[string]string{"questionId": env.mcqID.String(), "selectedOptionId": "b"})
	assert.Equal(t, "answer_saved", saved.Event)

	invalid := roundTrip("answer", "r3", map[string]string{"questionId": "nope", "selectedOptionId": "b"})
	assert.Equal(t, "error", invalid.Event)
	require.NotNil(t, invalid.Error)
	assert.Equal(t, response.ErrValidation, invalid.Error.Code)

	violation := roundTrip("proctor_event", "r4", map[string]string{"type": "eye_movement"})
	assert.Equal(t, "violation", violation.Event)

	unknown := roundTrip("dance", "r5", nil)
	assert.Equal(t, "error", unknown.Event)

	submitted := roundTrip("submit", "r6", nil)
	require.Equal(t, "submitted", submitted.Event)
	var result model.SubmitResult
	require.NoError(t, json.Unmarshal(submitted.Data, &result))
	assert.Equal(t, 50.0, result.Score)

	closed := roundTrip("answer", "r7", map[string]string{"questionId": env.mcqID.String(), "selectedOptionId": "a"})
	require.NotNil(t, closed.Error)
	assert.Equal(t, response.ErrAttemptClosed, closed.Error.Code)
	assert.Equal(t, model.AttemptStatusCompleted, closed.Error.AttemptStatus)
}

func TestAttemptStreamRejectsForeignAttempt(t *testing.T) {
	env := newTestEnv(t, nil)

	srv := httptest.NewServer(env.engine)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/assessment/" + uuid.NewString() + "/stream?token=" + env.candidateToken

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
