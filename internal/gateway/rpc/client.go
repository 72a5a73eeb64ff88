package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/roster/internal/domain"
)

const userAgent = "roster/1.0"

// Client implements domain.Gateway against a backend speaking the rpc wire format
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a gateway client. A zero timeout leaves calls unbounded;
// the event stream is never subject to it.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, requestID, nil
}

// call performs one RPC and decodes the result into out (which may be nil)
func (c *Client) call(ctx context.Context, method string, args, out interface{}) error {
	if args == nil {
		args = struct{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", method, err)
	}

	req, requestID, err := c.newRequest(ctx, http.MethodPost, c.baseURL+rpcPrefix+method, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	c.logger.Debug("gateway request", "method", method, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error("gateway request failed", "method", method, "request_id", requestID, "error", err)
		return &domain.GatewayError{
			Op:      method,
			Kind:    domain.KindEnvironment,
			Message: domain.ErrBackendUnreachable.Error(),
			Err:     domain.ErrBackendUnreachable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &domain.GatewayError{Op: method, Kind: domain.KindGeneric, Err: domain.ErrAuthFailed}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("gateway response undecodable", "method", method, "status", resp.StatusCode, "body", string(body))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if env.Error != nil || resp.StatusCode != http.StatusOK {
		gwErr := &domain.GatewayError{Op: method, Kind: domain.KindGeneric}
		if env.Error != nil {
			gwErr.Kind = domain.ParseErrorKind(env.Error.Kind)
			gwErr.Message = env.Error.Message
		}
		if resp.StatusCode == http.StatusNotFound {
			gwErr.Err = domain.ErrAccountNotFound
		}
		c.logger.Debug("gateway returned error", "method", method, "request_id", requestID, "kind", gwErr.Kind, "message", gwErr.Message)
		return gwErr
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.call(ctx, methodListAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

func (c *Client) GetCurrentAccount(ctx context.Context) (*domain.Account, error) {
	var account *domain.Account
	if err := c.call(ctx, methodGetCurrentAccount, nil, &account); err != nil {
		return nil, err
	}
	return account, nil
}

func (c *Client) AddAccount(ctx context.Context, email, refreshToken string) error {
	return c.call(ctx, methodAddAccount, addAccountArgs{Email: email, RefreshToken: refreshToken}, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.call(ctx, methodDeleteAccount, accountIDArgs{AccountID: id}, nil)
}

func (c *Client) DeleteAccounts(ctx context.Context, ids []string) error {
	return c.call(ctx, methodDeleteAccounts, accountIDsArgs{AccountIDs: ids}, nil)
}

func (c *Client) SwitchAccount(ctx context.Context, id string) error {
	return c.call(ctx, methodSwitchAccount, accountIDArgs{AccountID: id}, nil)
}

func (c *Client) FetchAccountQuota(ctx context.Context, id string) error {
	return c.call(ctx, methodFetchAccountQuota, accountIDArgs{AccountID: id}, nil)
}

func (c *Client) RefreshAllQuotas(ctx context.Context) (domain.RefreshStats, error) {
	var stats domain.RefreshStats
	err := c.call(ctx, methodRefreshAllQuotas, nil, &stats)
	return stats, err
}

func (c *Client) StartOAuthLogin(ctx context.Context) error {
	return c.call(ctx, methodStartOAuthLogin, nil, nil)
}

func (c *Client) CancelOAuthLogin(ctx context.Context) error {
	return c.call(ctx, methodCancelOAuthLogin, nil, nil)
}

func (c *Client) CompleteOAuthLogin(ctx context.Context) error {
	return c.call(ctx, methodCompleteOAuthLogin, nil, nil)
}

func (c *Client) ImportV1Accounts(ctx context.Context) error {
	return c.call(ctx, methodImportV1Accounts, nil, nil)
}

func (c *Client) ImportFromDB(ctx context.Context) error {
	return c.call(ctx, methodImportFromDB, nil, nil)
}

func (c *Client) ImportFromCustomDB(ctx context.Context, path string) error {
	return c.call(ctx, methodImportFromCustomDB, customDBArgs{Path: path}, nil)
}

func (c *Client) SyncAccountFromDB(ctx context.Context) (*domain.Account, error) {
	var account *domain.Account
	if err := c.call(ctx, methodSyncAccountFromDB, nil, &account); err != nil {
		return nil, err
	}
	return account, nil
}

func (c *Client) ToggleProxyStatus(ctx context.Context, id string, enabled bool, reason string) error {
	return c.call(ctx, methodToggleProxyStatus, toggleProxyArgs{AccountID: id, Enable: enabled, Reason: reason}, nil)
}

// SubscribeOAuthURL opens the event stream and returns once the backend has
// accepted it, so no event published after return is missed.
func (c *Client) SubscribeOAuthURL(ctx context.Context) (domain.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	q := url.Values{}
	q.Set("topic", domain.TopicOAuthURL)
	req, requestID, err := c.newRequest(streamCtx, http.MethodGet, c.baseURL+eventsPath+"?"+q.Encode(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("event stream failed", "request_id", requestID, "error", err)
		return nil, &domain.GatewayError{
			Op:      "subscribe",
			Kind:    domain.KindEnvironment,
			Message: domain.ErrBackendUnreachable.Error(),
			Err:     domain.ErrBackendUnreachable,
		}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &domain.GatewayError{Op: "subscribe", Kind: domain.KindGeneric, Err: domain.ErrAuthFailed}
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s := &streamSubscription{
		ch:     make(chan string, 4),
		ctx:    streamCtx,
		cancel: cancel,
	}
	go s.read(resp.Body, c.logger)
	return s, nil
}

type streamSubscription struct {
	ch     chan string
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *streamSubscription) URLs() <-chan string {
	return s.ch
}

func (s *streamSubscription) Close() {
	s.once.Do(s.cancel)
}

func (s *streamSubscription) read(body io.ReadCloser, logger *slog.Logger) {
	defer close(s.ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warn("skipping malformed event", "error", err)
			continue
		}
		if ev.Topic != domain.TopicOAuthURL {
			continue
		}
		select {
		case s.ch <- ev.Payload:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("event stream ended", "error", err)
	}
}

var _ domain.Gateway = (*Client)(nil)
