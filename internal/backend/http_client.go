package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stillmind/internal/model"
)

// Client is the PresenceBackend implementation speaking to the stillmind
// server's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the server at baseURL (no trailing slash
// required). Requests share one http.Client with a timeout shorter than the
// heartbeat interval so a stalled call cannot pile up behind the next tick.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) InitUser(ctx context.Context, userID, displayName string) (*model.User, error) {
	var u model.User
	req := model.InitUserRequest{UserID: userID, DisplayName: displayName}
	if err := c.do(ctx, http.MethodPost, "/v1/users/init", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ReportHeartbeat(ctx context.Context, userID string) (*model.PresenceCounts, error) {
	var counts model.PresenceCounts
	path := "/v1/users/" + url.PathEscape(userID) + "/heartbeat"
	if err := c.do(ctx, http.MethodPost, path, nil, &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

func (c *Client) StartSession(ctx context.Context, userID string) (string, error) {
	var resp model.StartSessionResponse
	req := model.StartSessionRequest{UserID: userID}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID string, durationSeconds int, endedAt time.Time) error {
	req := model.EndSessionRequest{DurationSeconds: durationSeconds}
	if !endedAt.IsZero() {
		req.EndedAt = endedAt.UTC().Format(time.RFC3339)
	}
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/end"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

func (c *Client) IncrementUserStats(ctx context.Context, userID string, delta model.StatsDelta) error {
	path := "/v1/users/" + url.PathEscape(userID) + "/stats"
	return c.do(ctx, http.MethodPost, path, delta, nil)
}

func (c *Client) Leaderboard(ctx context.Context, userID string, limit int) (*model.LeaderboardPage, error) {
	var page model.LeaderboardPage
	path := "/v1/leaderboard?userId=" + url.QueryEscape(userID) + "&limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UserRank(ctx context.Context, userID string) (int, error) {
	var resp struct {
		Rank int `json:"rank"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/rank"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Rank, nil
}
