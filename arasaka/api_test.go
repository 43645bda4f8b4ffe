package arasaka

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminUsername = "admin"
	testAdminPassword = "correct horse battery"
)

type apiClient struct {
	t       *testing.T
	api     *API
	cookies []*http.Cookie
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.api.engine.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// newLoggedInClient sets the admin credentials and logs in
func newLoggedInClient(t *testing.T, tb *testBot) *apiClient {
	t.Helper()
	ctx := context.Background()
	password, err := HashPassword(testAdminPassword)
	require.NoError(t, err)

	b := tb.bot
	current := b.RuntimeConfig()
	_, err = b.writeDB.Updates(
		ctx,
		&current,
		map[string]any{
			columnRuntimeConfigAdminUsername: testAdminUsername,
			columnRuntimeConfigAdminPassword: password,
		},
	)
	require.NoError(t, err)
	b.runtimeConfig = &current

	client := &apiClient{t: t, api: b.api}
	w := client.do(
		http.MethodPost,
		apiPathLogin,
		userLogin{Username: testAdminUsername, Password: testAdminPassword},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, client.cookies)
	return client
}

func TestAPI_SetupAndLogin(t *testing.T) {
	tb := newTestBot(t)
	b := tb.bot
	b.pendingSetup.Store(true)
	client := &apiClient{t: t, api: b.api}

	w := client.do(http.MethodGet, apiPathSetupStatus, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeJSON[setupResponse](t, w).Required)

	// protected routes are closed until setup finishes
	w = client.do(http.MethodGet, apiPrefix+apiPathConfig, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = client.do(
		http.MethodPost,
		apiPathSetup,
		adminSetupPayload{
			Username:        testAdminUsername,
			Password:        testAdminPassword,
			ConfirmPassword: "something else",
		},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, b.pendingSetup.Load())

	w = client.do(
		http.MethodPost,
		apiPathSetup,
		adminSetupPayload{
			Username:        testAdminUsername,
			Password:        testAdminPassword,
			ConfirmPassword: testAdminPassword,
		},
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.False(t, b.pendingSetup.Load())
	assert.Equal(t, testAdminUsername, b.RuntimeConfig().AdminUsername)

	var saved RuntimeConfig
	require.NoError(t, b.db.First(&saved).Error)
	valid, err := VerifyPassword(saved.AdminPassword, testAdminPassword)
	require.NoError(t, err)
	assert.True(t, valid)

	// setup can only happen once
	w = client.do(
		http.MethodPost,
		apiPathSetup,
		adminSetupPayload{
			Username:        "intruder",
			Password:        "password123",
			ConfirmPassword: "password123",
		},
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = client.do(
		http.MethodPost,
		apiPathLogin,
		userLogin{Username: testAdminUsername, Password: "wrong password"},
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, client.cookies)

	w = client.do(
		http.MethodPost,
		apiPathLogin,
		userLogin{Username: testAdminUsername, Password: testAdminPassword},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, testAdminUsername, decodeJSON[loggedInResponse](t, w).Username)
	require.NotEmpty(t, client.cookies)
	assert.Equal(t, sessionVarName, client.cookies[0].Name)

	w = client.do(http.MethodGet, apiPrefix+apiPathLoggedIn, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testAdminUsername, decodeJSON[loggedInResponse](t, w).Username)

	w = client.do(http.MethodGet, apiPrefix+apiPathConfig, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeJSON[RuntimeConfig](t, w).Paused)
}

func TestAPI_LoginRateLimit(t *testing.T) {
	tb := newTestBot(t)
	client := &apiClient{t: t, api: tb.bot.api}

	var codes []int
	for range 5 {
		w := client.do(
			http.MethodPost,
			apiPathLogin,
			userLogin{Username: testAdminUsername, Password: "password123"},
		)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[len(codes)-1])
}

func TestAPI_Public(t *testing.T) {
	tb := newTestBot(t)
	client := &apiClient{t: t, api: tb.bot.api}

	t.Run(
		"healthz", func(t *testing.T) {
			w := client.do(http.MethodGet, apiHealthCheck, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))
			status := decodeJSON[BotStatus](t, w)
			assert.False(t, status.Paused)
			assert.Zero(t, status.PendingConfirmations)
		},
	)

	t.Run(
		"not found", func(t *testing.T) {
			w := client.do(http.MethodGet, "/nowhere", nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "not found", decodeJSON[httpError](t, w).Error)
		},
	)

	t.Run(
		"unauthorized", func(t *testing.T) {
			for _, path := range []string{apiPathConfig, "/ledger/alice", apiPathEvents, apiPathQuota} {
				w := client.do(http.MethodGet, apiPrefix+path, nil)
				assert.Equal(t, http.StatusUnauthorized, w.Code, path)
			}
		},
	)

	t.Run(
		"setup not pending", func(t *testing.T) {
			w := client.do(http.MethodGet, apiPathSetupStatus, nil)
			assert.False(t, decodeJSON[setupResponse](t, w).Required)
		},
	)
}

func TestAPI_Protected(t *testing.T) {
	tb := newTestBot(t)
	client := newLoggedInClient(t, tb)

	t.Run(
		"ledger member", func(t *testing.T) {
			w := client.do(http.MethodGet, apiPrefix+"/ledger/ALICE", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			member := decodeJSON[ledgerMemberResponse](t, w)
			assert.Equal(t, "alice", member.Username)
			assert.Equal(t, RankInitiate, member.Rank)
			assert.Equal(t, "2", member.WeeklyXP)
			assert.Equal(t, RankInitiate, member.Progress.CurrentRank)

			w = client.do(http.MethodGet, apiPrefix+"/ledger/ghost", nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "member not found", decodeJSON[httpError](t, w).Error)
		},
	)

	t.Run(
		"events", func(t *testing.T) {
			w := client.do(http.MethodGet, apiPrefix+apiPathEvents, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = client.do(http.MethodGet, apiPrefix+apiPathEvents+"?discord_id=abc", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = client.do(http.MethodGet, apiPrefix+apiPathEvents+"?username=alice", nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			events := decodeJSON[eventsResponse](t, w)
			assert.Zero(t, events.Total)
			assert.Empty(t, events.Events)
		},
	)

	t.Run(
		"interactions", func(t *testing.T) {
			w := client.do(http.MethodGet, apiPrefix+apiPathInteractions+"?order=sideways", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = client.do(http.MethodGet, apiPrefix+apiPathInteractions+"?limit=5", nil)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		},
	)

	t.Run(
		"update config", func(t *testing.T) {
			w := client.do(
				http.MethodPatch,
				apiPrefix+apiPathConfig,
				map[string]any{"log_level": "LOUD"},
			)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w = client.do(
				http.MethodPatch,
				apiPrefix+apiPathConfig,
				map[string]any{"paused": true, "discord_custom_status": "Monitoring Night City"},
			)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.ElementsMatch(
				t,
				[]string{"paused", "discord_custom_status"},
				decodeJSON[runtimeConfigUpdateResponse](t, w).Updated,
			)

			var saved RuntimeConfig
			require.NoError(t, tb.bot.db.First(&saved).Error)
			assert.True(t, saved.Paused)
			assert.Equal(t, "Monitoring Night City", saved.DiscordCustomStatus)
		},
	)

	t.Run(
		"quit without notifier", func(t *testing.T) {
			w := client.do(http.MethodPost, apiPrefix+apiPathQuit, nil)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		},
	)

	t.Run(
		"metrics", func(t *testing.T) {
			w := client.do(http.MethodGet, apiPrefix+apiPathMetrics, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEmpty(t, decodeJSON[map[string]int](t, w))
		},
	)

	t.Run(
		"starting up", func(t *testing.T) {
			tb.bot.servicesReady.Store(false)
			t.Cleanup(func() { tb.bot.servicesReady.Store(true) })

			w := client.do(http.MethodGet, apiPrefix+"/ledger/alice", nil)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "starting up", decodeJSON[httpError](t, w).Error)

			// config is still reachable
			w = client.do(http.MethodGet, apiPrefix+apiPathConfig, nil)
			assert.Equal(t, http.StatusOK, w.Code)
		},
	)

	t.Run(
		"logout", func(t *testing.T) {
			w := client.do(http.MethodPost, apiPathLogout, nil)
			require.Equal(t, http.StatusOK, w.Code)

			w = client.do(http.MethodGet, apiPrefix+apiPathLoggedIn, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		},
	)
}
