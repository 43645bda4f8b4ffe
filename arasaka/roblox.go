package arasaka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	robloxCSRFHeader   = "X-CSRF-TOKEN"
	robloxCookieName   = ".ROBLOSECURITY"
	robloxErrorMaxBody = 512
)

var ErrRobloxUserNotFound = errors.New("roblox user not found")

// GroupRole is a role (rank) in the Roblox group.
type GroupRole struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// RobloxAPIError is a non-2xx response from a Roblox API
type RobloxAPIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RobloxAPIError) Error() string {
	return fmt.Sprintf(
		"roblox api: %s %s: %d %s",
		e.Method, e.URL, e.StatusCode, e.Body,
	)
}

// RobloxClient calls the Roblox users and groups APIs. Group writes
// authenticate with the configured security cookie, and the CSRF token
// Roblox hands back on the first rejected write is reused afterward.
type RobloxClient struct {
	usersURL  string
	groupsURL string
	groupID   string
	cookie    string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger

	csrfMu sync.Mutex
	csrf   string
}

func NewRobloxClient(
	config *RobloxConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *RobloxClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobloxClient{
		usersURL:  strings.TrimSuffix(config.UsersURL, "/"),
		groupsURL: strings.TrimSuffix(config.GroupsURL, "/"),
		groupID:   config.GroupID,
		cookie:    config.SecurityCookie,
		client:    httpClient,
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:    logger.With(loggerNameKey, "roblox"),
	}
}

func (c *RobloxClient) csrfToken() string {
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	return c.csrf
}

func (c *RobloxClient) setCSRFToken(token string) {
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	c.csrf = token
}

// do sends a request, JSON-encoding body if set and decoding the
// response into v if set. Authenticated requests are retried once when
// Roblox rejects the CSRF token and supplies a new one.
func (c *RobloxClient) do(
	ctx context.Context,
	method string,
	u string,
	body any,
	authenticated bool,
	v any,
) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if authenticated {
			req.AddCookie(&http.Cookie{Name: robloxCookieName, Value: c.cookie})
			if token := c.csrfToken(); token != "" {
				req.Header.Set(robloxCSRFHeader, token)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusForbidden && authenticated && attempt == 0 {
			if token := resp.Header.Get(robloxCSRFHeader); token != "" {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				c.logger.DebugContext(ctx, "refreshed csrf token")
				c.setCSRFToken(token)
				continue
			}
		}

		err = c.handleResponse(resp, method, u, v)
		resp.Body.Close()
		return err
	}
}

func (c *RobloxClient) handleResponse(resp *http.Response, method, u string, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, robloxErrorMaxBody))
		return &RobloxAPIError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// UserID returns the user ID for a username.
func (c *RobloxClient) UserID(ctx context.Context, username string) (int64, error) {
	var resp struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	err := c.do(
		ctx,
		http.MethodPost,
		c.usersURL+"/v1/usernames/users",
		map[string]any{
			"usernames":          []string{username},
			"excludeBannedUsers": false,
		},
		false,
		&resp,
	)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrRobloxUserNotFound, username)
	}
	return resp.Data[0].ID, nil
}

// Username returns the username for a user ID.
func (c *RobloxClient) Username(ctx context.Context, userID int64) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	u := c.usersURL + "/v1/users/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, http.MethodGet, u, nil, false, &resp); err != nil {
		var apiErr *RobloxAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %d", ErrRobloxUserNotFound, userID)
		}
		return "", err
	}
	return resp.Name, nil
}

// GroupRoles returns the group's roles, lowest rank first.
func (c *RobloxClient) GroupRoles(ctx context.Context) ([]GroupRole, error) {
	var resp struct {
		Roles []GroupRole `json:"roles"`
	}
	u := fmt.Sprintf("%s/v1/groups/%s/roles", c.groupsURL, c.groupID)
	if err := c.do(ctx, http.MethodGet, u, nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// SetRole sets the user's group role to the role with the given name.
func (c *RobloxClient) SetRole(ctx context.Context, userID int64, roleName string) error {
	roles, err := c.GroupRoles(ctx)
	if err != nil {
		return err
	}
	var role *GroupRole
	for i := range roles {
		if strings.EqualFold(roles[i].Name, roleName) {
			role = &roles[i]
			break
		}
	}
	if role == nil {
		return fmt.Errorf("group role not found: %s", roleName)
	}

	u := fmt.Sprintf("%s/v1/groups/%s/users/%d", c.groupsURL, c.groupID, userID)
	if err = c.do(ctx, http.MethodPatch, u, map[string]int64{"roleId": role.ID}, true, nil); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "set group role", "user_id", userID, "role", role.Name)
	return nil
}

// Kick removes the user from the group.
func (c *RobloxClient) Kick(ctx context.Context, userID int64) error {
	u := fmt.Sprintf("%s/v1/groups/%s/users/%d", c.groupsURL, c.groupID, userID)
	if err := c.do(ctx, http.MethodDelete, u, nil, true, nil); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "removed user from group", "user_id", userID)
	return nil
}
