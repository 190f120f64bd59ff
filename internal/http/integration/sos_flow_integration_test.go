package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/sosalert/internal/account"
	"github.com/geocoder89/sosalert/internal/auth"
	"github.com/geocoder89/sosalert/internal/config"
	apphttp "github.com/geocoder89/sosalert/internal/http"
	"github.com/geocoder89/sosalert/internal/notifications"
	"github.com/geocoder89/sosalert/internal/observability"
	"github.com/geocoder89/sosalert/internal/repo/memory"
	"github.com/geocoder89/sosalert/internal/sos"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err    error
	alerts []notifications.SOSAlert
}

func (s *stubNotifier) SendSOSAlert(_ context.Context, alert notifications.SOSAlert) error {
	s.alerts = append(s.alerts, alert)
	return s.err
}

func testConfig() config.Config {
	return config.Config{
		Env:          "test",
		Store:        "memory",
		JWTSecret:    "test-secret-key",
		Notifier:     "log",
		MaxBodyBytes: 1 << 20,
	}
}

func setupRouter(t *testing.T, notifier notifications.Notifier) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	jwtManager, err := auth.NewManager(cfg.JWTSecret, auth.DefaultSessionTTL)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	users := memory.NewUsersRepo()

	return apphttp.NewRouter(apphttp.Deps{
		Log:         logger,
		Config:      cfg,
		Accounts:    account.NewService(users, jwtManager),
		Coordinator: sos.NewCoordinator(users, notifier, logger, prom),
		Prom:        prom,
		Gatherer:    reg,
		Ping:        users.Ping,
	})
}

func doRequest(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

const annRegistration = `{
	"name": "Ann",
	"email": "ann@x.com",
	"password": "s3cret!",
	"emergencyContacts": [{"name": "Bo", "phone": "555-1"}]
}`

func TestSOSFlow_RegisterLoginDispatch(t *testing.T) {
	notifier := &stubNotifier{}
	router := setupRouter(t, notifier)

	w := doRequest(router, http.MethodPost, "/register", annRegistration)
	require.Equal(t, http.StatusCreated, w.Code, "body=%s", w.Body.String())

	w = doRequest(router, http.MethodPost, "/login", `{"email":"ann@x.com","password":"s3cret!"}`)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	var login struct {
		Message   string    `json:"message"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	mustReadJSON(t, w, &login)
	require.NotEmpty(t, login.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), login.ExpiresAt, 5*time.Second)

	w = doRequest(router, http.MethodPost, "/send-sos", `{"email":"ann@x.com","latitude":12.1,"longitude":77.6}`)
	require.Equal(t, http.StatusCreated, w.Code, "body=%s", w.Body.String())

	var sent struct {
		Message string `json:"message"`
	}
	mustReadJSON(t, w, &sent)
	assert.NotEmpty(t, sent.Message)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "555-1", notifier.alerts[0].Contacts[0].Phone)
	assert.Equal(t, 12.1, notifier.alerts[0].Latitude)

	// the token identifies the same user on the profile endpoint
	w = doRequest(router, http.MethodGet, "/me", "", "Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	var me map[string]any
	mustReadJSON(t, w, &me)
	assert.Equal(t, "ann@x.com", me["email"])
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "PasswordHash")
}

func TestSOSFlow_DuplicateRegistration(t *testing.T) {
	router := setupRouter(t, &stubNotifier{})

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/register", annRegistration).Code)

	w := doRequest(router, http.MethodPost, "/register", annRegistration)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	mustReadJSON(t, w, &body)
	assert.Equal(t, "email_taken", body.Error.Code)
}

func TestSOSFlow_LoginFailuresAreIndistinguishable(t *testing.T) {
	router := setupRouter(t, &stubNotifier{})
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/register", annRegistration).Code)

	wrong := doRequest(router, http.MethodPost, "/login", `{"email":"ann@x.com","password":"nope"}`)
	unknown := doRequest(router, http.MethodPost, "/login", `{"email":"nobody@x.com","password":"s3cret!"}`)

	require.Equal(t, http.StatusBadRequest, wrong.Code)
	require.Equal(t, http.StatusBadRequest, unknown.Code)

	// request ids differ per call; everything else must match
	var a, b errorBody
	mustReadJSON(t, wrong, &a)
	mustReadJSON(t, unknown, &b)
	assert.NotEqual(t, a.Error.RequestID, b.Error.RequestID)
	a.Error.RequestID, b.Error.RequestID = "", ""
	assert.Equal(t, a, b)
	assert.Equal(t, "invalid_credentials", a.Error.Code)
}

func TestSOSFlow_DispatchOutcomes(t *testing.T) {
	failing := &stubNotifier{err: errors.New("provider down")}
	router := setupRouter(t, failing)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/register", annRegistration).Code)

	w := doRequest(router, http.MethodPost, "/send-sos", `{"email":"ann@x.com","latitude":12.1,"longitude":77.6}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(router, http.MethodPost, "/send-sos", `{"email":"nobody@x.com","latitude":12.1,"longitude":77.6}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/send-sos", `{"email":"ann@x.com","latitude":12.1,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// only the first request reached the notifier
	assert.Len(t, failing.alerts, 1)

	metrics := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `sosalert_sos_dispatch_total{result="delivery_failure"} 1`)
	assert.Contains(t, metrics.Body.String(), `sosalert_sos_dispatch_total{result="not_found"} 1`)
}

func TestSOSFlow_ProfileRequiresValidToken(t *testing.T) {
	router := setupRouter(t, &stubNotifier{})

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/me", "").Code)

	other, err := auth.NewManager("someone-else", time.Hour)
	require.NoError(t, err)
	forged, _, err := other.GenerateAccessToken("u-1")
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/me", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSOSFlow_RootBannerAndContentType(t *testing.T) {
	router := setupRouter(t, &stubNotifier{})

	w := doRequest(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Running")

	for _, path := range []string{"/send-sos", "/register"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`email=ann@x.com`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "path=%s body=%s", path, rec.Body.String())

		var body errorBody
		mustReadJSON(t, rec, &body)
		assert.Equal(t, "invalid_request", body.Error.Code)
		assert.NotEmpty(t, body.Error.RequestID)
	}
}

func TestSOSFlow_MissingContentTypeStillDecodesJSON(t *testing.T) {
	router := setupRouter(t, &stubNotifier{})

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(annRegistration))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, "body=%s", rec.Body.String())
}

func TestSOSFlow_DispatchAcceptsStringCoordinates(t *testing.T) {
	notifier := &stubNotifier{}
	router := setupRouter(t, notifier)

	w := doRequest(router, http.MethodPost, "/register", annRegistration)
	require.Equal(t, http.StatusCreated, w.Code, "body=%s", w.Body.String())

	w = doRequest(router, http.MethodPost, "/send-sos", `{"email":"ann@x.com","latitude":"12.1","longitude":"77.6"}`)
	require.Equal(t, http.StatusCreated, w.Code, "body=%s", w.Body.String())

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, 12.1, notifier.alerts[0].Latitude)
	assert.Equal(t, 77.6, notifier.alerts[0].Longitude)

	// an empty or zero string is still a missing coordinate
	for _, body := range []string{
		`{"email":"ann@x.com","latitude":"","longitude":"77.6"}`,
		`{"email":"ann@x.com","latitude":"0","longitude":"77.6"}`,
	} {
		w = doRequest(router, http.MethodPost, "/send-sos", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%s", body)
	}
	assert.Len(t, notifier.alerts, 1)
}
