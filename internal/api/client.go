// Package api provides the REST client for the AgriLink marketplace
// service. The messaging core depends on four of its endpoints: the chat
// list, profile lookup, chat history, and conversation registration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agrilink/agrichat/internal/chat"
	"github.com/agrilink/agrichat/internal/identity"
)

// FetchError is any directory/history/start-conversation failure. It is
// recoverable: callers surface it and offer a retry, never swallow it
// into an empty result.
type FetchError struct {
	Endpoint string
	Status   int // zero when the request never reached the service
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client is an HTTP client for the marketplace API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given base URL, authenticating with the
// session token on every request.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatListResponse is the wire shape of GET /api/chatList.
type chatListResponse struct {
	ChatList []string `json:"chatList"`
}

// userRecord is the wire shape of a user profile.
type userRecord struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// historyRequest is the wire shape of the POST /api/findChats body.
type historyRequest struct {
	ChatID string `json:"chatId"`
}

// historyResponse is the wire shape of POST /api/findChats.
type historyResponse struct {
	Chats []chat.Message `json:"chats"`
}

// addConversationRequest is the wire shape of the POST /api/addchat body.
type addConversationRequest struct {
	ID string `json:"id"`
}

// ChatList returns the ids of users the current user has an open
// conversation with, in service order.
func (c *Client) ChatList(ctx context.Context) ([]string, error) {
	var resp chatListResponse
	if err := c.get(ctx, "/api/chatList", &resp); err != nil {
		return nil, err
	}
	return resp.ChatList, nil
}

// Profile resolves a user id to a full user record. Roles are validated
// here so nothing downstream ever compares raw role strings.
func (c *Client) Profile(ctx context.Context, id string) (identity.User, error) {
	endpoint := "/api/profile/" + url.PathEscape(id)
	var rec userRecord
	if err := c.get(ctx, endpoint, &rec); err != nil {
		return identity.User{}, err
	}
	return userFromRecord(endpoint, rec)
}

// Users returns every marketplace account, for the new-conversation
// candidate picker. Records with roles outside the closed set are
// dropped rather than failing the whole listing.
func (c *Client) Users(ctx context.Context) ([]identity.User, error) {
	var recs []userRecord
	if err := c.get(ctx, "/api/users", &recs); err != nil {
		return nil, err
	}

	users := make([]identity.User, 0, len(recs))
	for _, rec := range recs {
		u, err := userFromRecord("/api/users", rec)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// History fetches the ordered message history for a channel. The service
// order is authoritative; an empty channel yields an empty slice.
func (c *Client) History(ctx context.Context, channelID string) ([]chat.Message, error) {
	var resp historyResponse
	if err := c.post(ctx, "/api/findChats", historyRequest{ChatID: channelID}, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// AddConversation registers a new conversation with the given counterpart.
func (c *Client) AddConversation(ctx context.Context, counterpartID string) error {
	return c.post(ctx, "/api/addchat", addConversationRequest{ID: counterpartID}, nil)
}

func userFromRecord(endpoint string, rec userRecord) (identity.User, error) {
	role, err := identity.ParseRole(rec.Role)
	if err != nil {
		return identity.User{}, &FetchError{Endpoint: endpoint, Err: err}
	}
	return identity.User{ID: rec.ID, Name: rec.Name, Role: role}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	return c.do(req, endpoint, result)
}

func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, result)
}

func (c *Client) do(req *http.Request, endpoint string, result any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("server error: %s", string(body))}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("unmarshal response: %w", err)}
		}
	}

	return nil
}
