package skype

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

const (
	defaultLoginURL    = "https://api.skype.com"
	defaultMessagesURL = "https://client-s.gateway.messenger.live.com"
	defaultContactsURL = "https://contacts.skype.com"
)

// ErrNotAuthenticated is returned when the messaging backend rejects a call
// because the session token is missing or expired. Callers treat it as
// recoverable: the login loop re-authenticates, the failing call is reported
// to its own caller.
var ErrNotAuthenticated = errors.New("not authenticated to skype")

// Client is a thin REST client over the Skype messaging HTTP API. It only
// covers the handful of calls the bridge needs: token login, endpoint
// registration, message send, event long-poll and contact invites.
type Client struct {
	// Base URLs are exported so tests can point the client at a local server.
	LoginURL    string
	MessagesURL string
	ContactsURL string

	httpClient *http.Client

	mu         sync.Mutex
	skypeToken string
	regToken   string
	endpointID string
}

// NewClient creates a client against the public Skype endpoints.
func NewClient() *Client {
	return &Client{
		LoginURL:    defaultLoginURL,
		MessagesURL: defaultMessagesURL,
		ContactsURL: defaultContactsURL,
		httpClient:  &http.Client{Timeout: 90 * time.Second},
	}
}

type loginRequest struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Scopes       string `json:"scopes"`
}

type loginResponse struct {
	SkypeToken string `json:"skypetoken"`
	ExpiresIn  int    `json:"expiresIn"`
}

// Login exchanges the account credentials for a skypetoken. The password is
// hashed with the fixed "skyper" salt the login endpoint expects.
func (c *Client) Login(ctx context.Context, username, password string) error {
	sum := md5.Sum([]byte(username + "\nskyper\n" + password))
	req := loginRequest{
		Username:     username,
		PasswordHash: base64.StdEncoding.EncodeToString(sum[:]),
		Scopes:       "client",
	}

	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, c.LoginURL+"/login/skypetoken", req, &resp, nil); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.SkypeToken == "" {
		return errors.New("login: response carried no skypetoken")
	}

	c.mu.Lock()
	c.skypeToken = resp.SkypeToken
	c.regToken = ""
	c.endpointID = ""
	c.mu.Unlock()
	return nil
}

// RegisterEndpoint registers a messaging endpoint for the logged-in account
// and stores the registration token used by all subsequent messaging calls.
func (c *Client) RegisterEndpoint(ctx context.Context) error {
	c.mu.Lock()
	token := c.skypeToken
	c.mu.Unlock()
	if token == "" {
		return ErrNotAuthenticated
	}

	body := map[string]string{"endpointFeatures": "Agent"}
	headers := map[string]string{"Authentication": "skypetoken=" + token}

	httpResp, err := c.do(ctx, http.MethodPost, c.MessagesURL+"/v1/users/ME/endpoints", body, headers)
	if err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	defer httpResp.Body.Close()
	if err := checkStatus(httpResp); err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}

	regToken, _, _ := strings.Cut(httpResp.Header.Get("Set-RegistrationToken"), ";")
	regToken = strings.TrimSpace(regToken)
	if regToken == "" {
		return errors.New("register endpoint: no registration token in response")
	}
	endpointID := path.Base(httpResp.Header.Get("Location"))
	if endpointID == "" || endpointID == "." {
		endpointID = "SELF"
	}

	c.mu.Lock()
	c.regToken = regToken
	c.endpointID = endpointID
	c.mu.Unlock()
	return nil
}

// Subscribe creates the event subscription the long-poll reads from.
func (c *Client) Subscribe(ctx context.Context) error {
	regToken, endpointID, err := c.registration()
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"interestedResources": []string{"/v1/users/ME/conversations/ALL/messages"},
		"template":            "raw",
		"channelType":         "httpLongPoll",
	}
	url := fmt.Sprintf("%s/v1/users/ME/endpoints/%s/subscriptions", c.MessagesURL, endpointID)
	if err := c.doJSON(ctx, http.MethodPost, url, body, nil, map[string]string{"RegistrationToken": regToken}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

type sendMessageRequest struct {
	Content         string `json:"content"`
	MessageType     string `json:"messagetype"`
	ContentType     string `json:"contenttype"`
	ClientMessageID string `json:"clientmessageid"`
}

// SendMessage posts a text message into a conversation. clientMessageID is a
// caller-chosen id echoed back by the API, used here for log correlation.
func (c *Client) SendMessage(ctx context.Context, conversation, text, clientMessageID string) error {
	regToken, _, err := c.registration()
	if err != nil {
		return err
	}

	body := sendMessageRequest{
		Content:         text,
		MessageType:     "RichText",
		ContentType:     "text",
		ClientMessageID: clientMessageID,
	}
	url := fmt.Sprintf("%s/v1/users/ME/conversations/%s/messages", c.MessagesURL, conversation)
	if err := c.doJSON(ctx, http.MethodPost, url, body, nil, map[string]string{"RegistrationToken": regToken}); err != nil {
		return fmt.Errorf("send to %s: %w", conversation, err)
	}
	return nil
}

// eventMessage is the raw shape of one long-poll event.
type eventMessage struct {
	ID           int    `json:"id"`
	ResourceType string `json:"resourceType"`
	Resource     struct {
		From             string `json:"from"`
		ConversationLink string `json:"conversationLink"`
		Content          string `json:"content"`
		MessageType      string `json:"messagetype"`
	} `json:"resource"`
}

type pollResponse struct {
	EventMessages []eventMessage `json:"eventMessages"`
}

// Poll performs one long-poll cycle. It returns an empty slice when the poll
// times out server-side with nothing to report.
func (c *Client) Poll(ctx context.Context) ([]eventMessage, error) {
	regToken, endpointID, err := c.registration()
	if err != nil {
		return nil, err
	}

	var resp pollResponse
	url := fmt.Sprintf("%s/v1/users/ME/endpoints/%s/subscriptions/0/poll", c.MessagesURL, endpointID)
	if err := c.doJSON(ctx, http.MethodPost, url, nil, &resp, map[string]string{"RegistrationToken": regToken}); err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	return resp.EventMessages, nil
}

type invite struct {
	MRI string `json:"mri"`
}

type invitesResponse struct {
	InviteList []invite `json:"invite_list"`
}

// Invites lists pending contact requests as user MRIs ("8:<handle>").
func (c *Client) Invites(ctx context.Context, user string) ([]string, error) {
	c.mu.Lock()
	token := c.skypeToken
	c.mu.Unlock()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp invitesResponse
	url := fmt.Sprintf("%s/contacts/v2/users/%s/invites", c.ContactsURL, user)
	headers := map[string]string{"X-Skypetoken": token}
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp, headers); err != nil {
		return nil, fmt.Errorf("invites: %w", err)
	}

	mris := make([]string, 0, len(resp.InviteList))
	for _, inv := range resp.InviteList {
		mris = append(mris, inv.MRI)
	}
	return mris, nil
}

// AcceptInvite accepts a pending contact request.
func (c *Client) AcceptInvite(ctx context.Context, user, mri string) error {
	c.mu.Lock()
	token := c.skypeToken
	c.mu.Unlock()
	if token == "" {
		return ErrNotAuthenticated
	}

	url := fmt.Sprintf("%s/contacts/v2/users/%s/invites/%s/accept", c.ContactsURL, user, mri)
	headers := map[string]string{"X-Skypetoken": token}
	if err := c.doJSON(ctx, http.MethodPut, url, nil, nil, headers); err != nil {
		return fmt.Errorf("accept invite %s: %w", mri, err)
	}
	return nil
}

func (c *Client) registration() (regToken, endpointID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.regToken == "" {
		return "", "", ErrNotAuthenticated
	}
	return c.regToken, c.endpointID, nil
}

// doJSON issues a request with an optional JSON body and decodes a JSON
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}, headers map[string]string) error {
	resp, err := c.do(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
