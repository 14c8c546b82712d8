package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/http/response"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/services"
	"github.com/yungbote/skillquest-backend/internal/sse"
	"github.com/yungbote/skillquest-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func minimalProfile(uid uuid.UUID) *types.IntegratedUserProfile {
	return &types.IntegratedUserProfile{
		UserID:             uid,
		Revision:           7,
		OnboardingComplete: true,
		ActiveGoalID:       "goal_1",
	}
}

// withUser stands in for the auth middleware on protected test routes.
func withUser(uid uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID: uid,
			Token:  "device-token",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorEnvelope {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

type fakeLoaderSvc struct {
	p     *types.IntegratedUserProfile
	err   error
	calls int
}

func (f *fakeLoaderSvc) Load(ctx context.Context, userID uuid.UUID) (*types.IntegratedUserProfile, error) {
	f.calls++
	return f.p, f.err
}

type fakeProgressSvc struct {
	p       *types.IntegratedUserProfile
	err     error
	uid     uuid.UUID
	questID string
}

func (f *fakeProgressSvc) CompleteQuest(ctx context.Context, userID uuid.UUID, questID string) (*types.IntegratedUserProfile, error) {
	f.uid, f.questID = userID, questID
	if f.err != nil {
		return nil, f.err
	}
	return f.p, nil
}

type fakeResetSvc struct {
	err   error
	calls int
}

func (f *fakeResetSvc) Reset(ctx context.Context, userID uuid.UUID) error {
	f.calls++
	return f.err
}

type fakeIntegrationSvc struct {
	p          *types.IntegratedUserProfile
	report     services.IntegrationReport
	err        error
	gotToken   string
	gotAnswers types.OnboardingAnswers
}

func (f *fakeIntegrationSvc) Integrate(ctx context.Context, token string, answers types.OnboardingAnswers) (*types.IntegratedUserProfile, services.IntegrationReport, error) {
	f.gotToken = token
	f.gotAnswers = answers
	return f.p, f.report, f.err
}

type fakeSubsSvc struct {
	mu         sync.Mutex
	uid        uuid.UUID
	cb         func(*types.IntegratedUserProfile)
	subscribed chan struct{}
	unsubs     int32
}

func (f *fakeSubsSvc) SubscribeToProfile(ctx context.Context, userID uuid.UUID, cb func(*types.IntegratedUserProfile)) func() {
	f.mu.Lock()
	f.uid = userID
	f.cb = cb
	f.mu.Unlock()
	if f.subscribed != nil {
		close(f.subscribed)
	}
	return func() { atomic.AddInt32(&f.unsubs, 1) }
}

func (f *fakeSubsSvc) Forget(userID uuid.UUID) {}

var (
	_ services.ProfileLoader       = (*fakeLoaderSvc)(nil)
	_ services.ProgressService     = (*fakeProgressSvc)(nil)
	_ services.ResetService        = (*fakeResetSvc)(nil)
	_ services.IntegrationService  = (*fakeIntegrationSvc)(nil)
	_ services.SubscriptionService = (*fakeSubsSvc)(nil)
)

func TestHealthCheckReportsMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(runmode.ResolverFunc(func() runmode.Mode { return runmode.ModeRestricted }))

	r := gin.New()
	r.GET("/healthcheck", h.HealthCheck)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Mode   string `json:"mode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Mode != "restricted" {
		t.Fatalf("body: want=ok/restricted got=%s/%s", body.Status, body.Mode)
	}
}

func newIdentityRouter(t *testing.T) (*gin.Engine, identity.Resolver) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := newTestLogger(t)
	resolver, err := identity.NewResolver("test-secret", time.Hour, log)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	r := gin.New()
	r.POST("/api/identity", NewIdentityHandler(resolver, log).Resolve)
	return r, resolver
}

func TestIdentityResolveMintsWhenEmpty(t *testing.T) {
	r, _ := newIdentityRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/identity", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		UserID  uuid.UUID `json:"user_id"`
		Token   string    `json:"token"`
		Created bool      `json:"created"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Created {
		t.Fatal("expected a freshly minted identity")
	}
	if body.UserID == uuid.Nil || body.Token == "" {
		t.Fatalf("incomplete identity: %+v", body)
	}
}

func TestIdentityResolveEchoesExistingToken(t *testing.T) {
	r, resolver := newIdentityRouter(t)
	ident, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/identity",
		strings.NewReader(`{"token":"`+ident.Token+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		UserID  uuid.UUID `json:"user_id"`
		Created bool      `json:"created"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Created {
		t.Fatal("existing token must not mint a new identity")
	}
	if body.UserID != ident.UserID {
		t.Fatalf("user id: want=%s got=%s", ident.UserID, body.UserID)
	}
}

func TestIdentityResolveRejectsGarbageToken(t *testing.T) {
	r, _ := newIdentityRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/identity",
		strings.NewReader(`{"token":"not.a.jwt"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "unauthorized" {
		t.Fatalf("error code: want=unauthorized got=%s", env.Error.Code)
	}
}

func newProfileRouter(t *testing.T, uid uuid.UUID, loader *fakeLoaderSvc, reset *fakeResetSvc, subs *fakeSubsSvc, hub *sse.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewProfileHandler(loader, reset, subs, hub, newTestLogger(t))
	r := gin.New()
	r.Use(withUser(uid))
	r.GET("/api/profile", h.Get)
	r.GET("/api/profile/stream", h.Stream)
	r.POST("/api/profile/reset", h.Reset)
	return r
}

func TestProfileGetReturnsProfile(t *testing.T) {
	uid := uuid.New()
	loader := &fakeLoaderSvc{p: minimalProfile(uid)}
	hub := sse.NewHub(newTestLogger(t))
	r := newProfileRouter(t, uid, loader, &fakeResetSvc{}, &fakeSubsSvc{}, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Profile *types.IntegratedUserProfile `json:"profile"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Profile == nil || body.Profile.UserID != uid {
		t.Fatalf("profile round trip failed: %+v", body.Profile)
	}
}

func TestProfileGetMissingIs404(t *testing.T) {
	uid := uuid.New()
	hub := sse.NewHub(newTestLogger(t))
	r := newProfileRouter(t, uid, &fakeLoaderSvc{}, &fakeResetSvc{}, &fakeSubsSvc{}, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "not_found" {
		t.Fatalf("error code: want=not_found got=%s", env.Error.Code)
	}
}

func TestProfileGetMapsLoadFailure(t *testing.T) {
	uid := uuid.New()
	loader := &fakeLoaderSvc{err: errors.New("both stores down")}
	hub := sse.NewHub(newTestLogger(t))
	r := newProfileRouter(t, uid, loader, &fakeResetSvc{}, &fakeSubsSvc{}, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
}

func TestProfileRoutesRequireIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := sse.NewHub(newTestLogger(t))
	h := NewProfileHandler(&fakeLoaderSvc{}, &fakeResetSvc{}, &fakeSubsSvc{}, hub, newTestLogger(t))
	r := gin.New()
	r.GET("/api/profile", h.Get)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", rec.Code)
	}
}

func TestProfileResetBroadcasts(t *testing.T) {
	uid := uuid.New()
	hub := sse.NewHub(newTestLogger(t))
	listener := hub.NewClient(uid)
	hub.Subscribe(listener, sse.ProfileChannel(uid))
	reset := &fakeResetSvc{}
	r := newProfileRouter(t, uid, &fakeLoaderSvc{}, reset, &fakeSubsSvc{}, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/profile/reset", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if reset.calls != 1 {
		t.Fatalf("reset calls: want=1 got=%d", reset.calls)
	}
	select {
	case msg := <-listener.Outbound:
		if msg.Event != sse.EventProfileReset {
			t.Fatalf("event: want=%s got=%s", sse.EventProfileReset, msg.Event)
		}
	default:
		t.Fatal("expected a reset broadcast")
	}
}

func TestProfileResetIncompleteIs503(t *testing.T) {
	uid := uuid.New()
	hub := sse.NewHub(newTestLogger(t))
	listener := hub.NewClient(uid)
	hub.Subscribe(listener, sse.ProfileChannel(uid))
	reset := &fakeResetSvc{err: services.ErrResetIncomplete}
	r := newProfileRouter(t, uid, &fakeLoaderSvc{}, reset, &fakeSubsSvc{}, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/profile/reset", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=503 got=%d", rec.Code)
	}
	select {
	case msg := <-listener.Outbound:
		t.Fatalf("no broadcast expected on failed reset, got %s", msg.Event)
	default:
	}
}

func TestProfileStreamSubscribesAndTearsDown(t *testing.T) {
	uid := uuid.New()
	subs := &fakeSubsSvc{subscribed: make(chan struct{})}
	hub := sse.NewHub(newTestLogger(t))
	r := newProfileRouter(t, uid, &fakeLoaderSvc{}, &fakeResetSvc{}, subs, hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/profile/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	select {
	case <-subs.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed to profile changes")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after context cancel")
	}

	if subs.uid != uid {
		t.Fatalf("subscribed user: want=%s got=%s", uid, subs.uid)
	}
	if got := atomic.LoadInt32(&subs.unsubs); got != 1 {
		t.Fatalf("unsubscribe calls: want=1 got=%d", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: want=text/event-stream got=%q", ct)
	}
}

func newQuestRouter(t *testing.T, uid uuid.UUID, progress *fakeProgressSvc, hub *sse.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewQuestHandler(progress, hub, newTestLogger(t))
	r := gin.New()
	r.Use(withUser(uid))
	r.POST("/api/quests/:questId/complete", h.Complete)
	return r
}

func TestQuestCompleteReturnsProfileAndBroadcasts(t *testing.T) {
	uid := uuid.New()
	progress := &fakeProgressSvc{p: minimalProfile(uid)}
	hub := sse.NewHub(newTestLogger(t))
	listener := hub.NewClient(uid)
	hub.Subscribe(listener, sse.ProfileChannel(uid))
	r := newQuestRouter(t, uid, progress, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quests/q1/complete", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if progress.uid != uid || progress.questID != "q1" {
		t.Fatalf("service call: want=%s/q1 got=%s/%s", uid, progress.uid, progress.questID)
	}
	select {
	case msg := <-listener.Outbound:
		if msg.Event != sse.EventQuestCompleted {
			t.Fatalf("event: want=%s got=%s", sse.EventQuestCompleted, msg.Event)
		}
	default:
		t.Fatal("expected a completion broadcast")
	}
}

func TestQuestCompleteFullDayIsConflict(t *testing.T) {
	uid := uuid.New()
	progress := &fakeProgressSvc{err: services.ErrTodayFull}
	hub := sse.NewHub(newTestLogger(t))
	r := newQuestRouter(t, uid, progress, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quests/q9/complete", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: want=409 got=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "conflict" {
		t.Fatalf("error code: want=conflict got=%s", env.Error.Code)
	}
}

func TestQuestCompleteUnknownQuestIs404(t *testing.T) {
	uid := uuid.New()
	progress := &fakeProgressSvc{err: services.ErrQuestNotFound}
	hub := sse.NewHub(newTestLogger(t))
	r := newQuestRouter(t, uid, progress, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quests/nope/complete", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d", rec.Code)
	}
}

func TestQuestCompleteWithoutProfileIs404(t *testing.T) {
	uid := uuid.New()
	progress := &fakeProgressSvc{err: services.ErrProfileNotFound}
	hub := sse.NewHub(newTestLogger(t))
	r := newQuestRouter(t, uid, progress, hub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quests/q1/complete", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d", rec.Code)
	}
}

func newOnboardingRouter(t *testing.T, uid uuid.UUID, integration *fakeIntegrationSvc, hub *sse.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewOnboardingHandler(integration, hub, newTestLogger(t))
	r := gin.New()
	r.Use(withUser(uid))
	r.POST("/api/onboarding", h.Submit)
	return r
}

func TestOnboardingRejectsMalformedBody(t *testing.T) {
	uid := uuid.New()
	hub := sse.NewHub(newTestLogger(t))
	r := newOnboardingRouter(t, uid, &fakeIntegrationSvc{}, hub)

	req := httptest.NewRequest(http.MethodPost, "/api/onboarding", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
}

func TestOnboardingReturnsProfileAndReport(t *testing.T) {
	uid := uuid.New()
	integration := &fakeIntegrationSvc{
		p: minimalProfile(uid),
		report: services.IntegrationReport{
			Stages: []services.StageResult{
				{Stage: services.StageIdentify, Status: services.StageOK},
				{Stage: services.StageQuests, Status: services.StageDegraded, Reason: "generator offline"},
			},
		},
	}
	hub := sse.NewHub(newTestLogger(t))
	listener := hub.NewClient(uid)
	hub.Subscribe(listener, sse.ProfileChannel(uid))
	r := newOnboardingRouter(t, uid, integration, hub)

	req := httptest.NewRequest(http.MethodPost, "/api/onboarding",
		strings.NewReader(`{"goal_text":"pass the exam","goal_category":"language"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if integration.gotToken != "device-token" {
		t.Fatalf("token passthrough: want=device-token got=%q", integration.gotToken)
	}
	if integration.gotAnswers.GoalText != "pass the exam" {
		t.Fatalf("answers binding: got %+v", integration.gotAnswers)
	}
	var body struct {
		Profile *types.IntegratedUserProfile `json:"profile"`
		Report  services.IntegrationReport   `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Profile == nil || body.Profile.UserID != uid {
		t.Fatalf("profile round trip failed: %+v", body.Profile)
	}
	if len(body.Report.Stages) != 2 {
		t.Fatalf("report stages: want=2 got=%d", len(body.Report.Stages))
	}
	select {
	case msg := <-listener.Outbound:
		if msg.Event != sse.EventProfileUpdated {
			t.Fatalf("event: want=%s got=%s", sse.EventProfileUpdated, msg.Event)
		}
	default:
		t.Fatal("expected a profile broadcast")
	}
}

func TestOnboardingInvalidAnswersIs400(t *testing.T) {
	uid := uuid.New()
	integration := &fakeIntegrationSvc{err: errors.New("goal_text is required")}
	hub := sse.NewHub(newTestLogger(t))
	r := newOnboardingRouter(t, uid, integration, hub)

	req := httptest.NewRequest(http.MethodPost, "/api/onboarding", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "invalid_request" {
		t.Fatalf("error code: want=invalid_request got=%s", env.Error.Code)
	}
}
