package arasaka

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoblox serves the subset of the Roblox users and groups APIs the
// client uses, and records group writes.
type fakeRoblox struct {
	mu      sync.Mutex
	users   map[string]int64
	roles   []GroupRole
	csrf    string
	patched map[int64]int64
	kicked  []int64
	writes  int
}

func newFakeRoblox(t testing.TB) (*fakeRoblox, *httptest.Server) {
	t.Helper()
	f := &fakeRoblox{
		users: map[string]int64{
			"alice": 1,
			"bob":   2,
			"carol": 3,
			"Goro":  4,
		},
		csrf:    "token-1",
		patched: map[int64]int64{},
	}
	for i, r := range DefaultHierarchy() {
		f.roles = append(f.roles, GroupRole{ID: int64(100 + i), Name: r.Label(), Rank: 255 - i})
	}

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST /v1/usernames/users", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Usernames []string `json:"usernames"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			type user struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			}
			data := []user{}
			f.mu.Lock()
			for _, name := range body.Usernames {
				for known, id := range f.users {
					if strings.EqualFold(known, name) {
						data = append(data, user{ID: id, Name: known})
					}
				}
			}
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		},
	)
	mux.HandleFunc(
		"GET /v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
			f.mu.Lock()
			defer f.mu.Unlock()
			for name, uid := range f.users {
				if uid == id {
					_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "name": name})
					return
				}
			}
			http.Error(w, `{"errors":[{"code":3}]}`, http.StatusNotFound)
		},
	)
	mux.HandleFunc(
		"GET /v1/groups/{group}/roles", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"roles": f.roles})
		},
	)
	write := func(w http.ResponseWriter, r *http.Request) bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writes++
		if c, err := r.Cookie(robloxCookieName); err != nil || c.Value != "cookie" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return false
		}
		if r.Header.Get(robloxCSRFHeader) != f.csrf {
			w.Header().Set(robloxCSRFHeader, f.csrf)
			http.Error(w, "token validation failed", http.StatusForbidden)
			return false
		}
		return true
	}
	mux.HandleFunc(
		"PATCH /v1/groups/{group}/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !write(w, r) {
				return
			}
			var body struct {
				RoleID int64 `json:"roleId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
			f.mu.Lock()
			f.patched[id] = body.RoleID
			f.mu.Unlock()
			_, _ = fmt.Fprint(w, "{}")
		},
	)
	mux.HandleFunc(
		"DELETE /v1/groups/{group}/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !write(w, r) {
				return
			}
			id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
			f.mu.Lock()
			f.kicked = append(f.kicked, id)
			f.mu.Unlock()
			_, _ = fmt.Fprint(w, "{}")
		},
	)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeRoblox) roleID(label string) int64 {
	for _, r := range f.roles {
		if r.Name == label {
			return r.ID
		}
	}
	return 0
}

func testRobloxConfig(url string) *RobloxConfig {
	return &RobloxConfig{
		UsersURL:          url,
		GroupsURL:         url + "/",
		GroupID:           "4242",
		SecurityCookie:    "cookie",
		RequestsPerSecond: 1000,
	}
}

func TestRobloxClient(t *testing.T) {
	ctx := context.Background()
	fake, ts := newFakeRoblox(t)
	client := NewRobloxClient(testRobloxConfig(ts.URL), ts.Client(), testLogger())

	id, err := client.UserID(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = client.UserID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrRobloxUserNotFound)

	name, err := client.Username(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Goro", name)

	_, err = client.Username(ctx, 99)
	assert.ErrorIs(t, err, ErrRobloxUserNotFound)

	roles, err := client.GroupRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(DefaultHierarchy()))

	t.Run(
		"csrf token is refreshed once", func(t *testing.T) {
			require.NoError(t, client.SetRole(ctx, 2, "[A-3] Operative"))
			assert.Equal(t, fake.roleID("[A-3] Operative"), fake.patched[2])
			assert.Equal(t, 2, fake.writes)
			assert.Equal(t, "token-1", client.csrfToken())

			// the stored token is reused
			require.NoError(t, client.Kick(ctx, 3))
			assert.Equal(t, []int64{3}, fake.kicked)
			assert.Equal(t, 3, fake.writes)
		},
	)

	t.Run(
		"unknown role", func(t *testing.T) {
			err := client.SetRole(ctx, 2, "Janitor")
			assert.ErrorContains(t, err, "group role not found")
		},
	)

	t.Run(
		"api errors", func(t *testing.T) {
			bad := NewRobloxClient(
				&RobloxConfig{
					UsersURL:          ts.URL,
					GroupsURL:         ts.URL,
					GroupID:           "4242",
					SecurityCookie:    "wrong",
					RequestsPerSecond: 1000,
				},
				ts.Client(),
				testLogger(),
			)
			err := bad.Kick(ctx, 1)
			var apiErr *RobloxAPIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			assert.Equal(t, http.MethodDelete, apiErr.Method)
		},
	)
}
