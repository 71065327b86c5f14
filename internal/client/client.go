package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/lifecycle"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Client dispatches buyer and seller actions to the storefront API. The
// server owns every status; after a successful mutation the client re-fetches
// the affected list instead of patching local state.
type Client struct {
	baseURL  string
	http     *http.Client
	buyer    *session.Session
	seller   *session.Session
	guard    *ItemGuard
	statuses *statusCache
	logger   *zap.Logger
}

// New creates a client for the API at baseURL with fresh buyer and seller
// sessions. A nil httpClient uses a client with a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     httpClient,
		buyer:    session.New(session.Buyer),
		seller:   session.New(session.Seller),
		guard:    NewItemGuard(),
		statuses: newStatusCache(),
		logger:   util.Named("client"),
	}
}

// WithSessions replaces the buyer and seller sessions
func (c *Client) WithSessions(buyer, seller *session.Session) *Client {
	if buyer != nil {
		c.buyer = buyer
	}
	if seller != nil {
		c.seller = seller
	}
	return c
}

// Buyer returns the buyer session
func (c *Client) Buyer() *session.Session {
	return c.buyer
}

// Seller returns the seller session
func (c *Client) Seller() *session.Session {
	return c.seller
}

// Guard returns the per-item in-flight guard
func (c *Client) Guard() *ItemGuard {
	return c.guard
}

type call struct {
	method string
	path   string
	// sess is nil for public endpoints
	sess   *session.Session
	body   any
	header map[string]string
}

func (c *Client) send(ctx context.Context, cl call, out any) error {
	var token string
	if cl.sess != nil {
		t, err := cl.sess.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		token = t
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range cl.header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: cl.method + " " + cl.path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: cl.method + " " + cl.path, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		aerr := &ActionError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
		c.logger.Debug("request rejected",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", aerr.Message))
		if resp.StatusCode == http.StatusUnauthorized && cl.sess != nil {
			cl.sess.Logout()
		}
		return aerr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cl.path, err)
	}
	return nil
}

func errorMessage(raw []byte, status int) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return http.StatusText(status)
}

// SortOrders orders by creation time, newest first
func SortOrders(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

// statusCache remembers the last status seen for each item. Statuses only
// move forward, so a cached terminal status is still current.
type statusCache struct {
	mu       sync.RWMutex
	statuses map[itemKey]lifecycle.Status
}

func newStatusCache() *statusCache {
	return &statusCache{statuses: make(map[itemKey]lifecycle.Status)}
}

func (s *statusCache) remember(orders []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		for _, it := range o.Items {
			s.statuses[itemKey{o.ID, it.ProductID}] = it.Status
		}
	}
}

func (s *statusCache) get(orderID, productID int64) (lifecycle.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[itemKey{orderID, productID}]
	return st, ok
}

// precheck rejects actions on items last seen in a terminal status
func (c *Client) precheck(orderID, productID int64, action lifecycle.Action, actor lifecycle.Actor) error {
	st, ok := c.statuses.get(orderID, productID)
	if !ok || !st.IsTerminal() {
		return nil
	}
	if _, err := lifecycle.Next(st, action, actor); err != nil {
		return fmt.Errorf("%w: item is %s", ErrInvalidTransition, st)
	}
	return nil
}

// itemAction runs one guarded item mutation and re-fetches the list on
// success
func (c *Client) itemAction(
	ctx context.Context,
	orderID, productID int64,
	action lifecycle.Action,
	actor lifecycle.Actor,
	cl call,
	refetch func(context.Context) ([]models.Order, error),
) ([]models.Order, error) {
	if err := c.precheck(orderID, productID, action, actor); err != nil {
		return nil, err
	}

	release, err := c.guard.Acquire(orderID, productID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.send(ctx, cl, nil); err != nil {
		return nil, err
	}
	return refetch(ctx)
}
