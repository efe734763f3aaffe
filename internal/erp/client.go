// Package erp is a minimal Odoo external API client over JSON-RPC.
//
// Only the calls the importer needs are implemented: a product lookup in
// product.product and record creation for stock.picking and stock.move.
// Records are decoded into typed values at this boundary.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/stocktransfer/internal/metrics"
)

// ErrAuthentication is returned when Odoo rejects the configured credentials.
var ErrAuthentication = errors.New("erp: authentication failed")

// RemoteError is a fault reported by the Odoo server.
type RemoteError struct {
	Code    int64
	Message string
	// Name is the server-side exception class, e.g. odoo.exceptions.ValidationError.
	Name string
	// Detail is the exception message shown to Odoo users.
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("erp: %s: %s", e.Message, e.Detail)
	}
	return fmt.Sprintf("erp: %s (code %d)", e.Message, e.Code)
}

// Config holds connection settings for a Client.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to a single Odoo database as a single user.
// It is safe for concurrent use; the session uid is obtained once.
type Client struct {
	endpoint string
	db       string
	username string
	password string
	http     *http.Client

	nextID atomic.Int64

	mu  sync.Mutex
	uid int64
}

// NewClient constructs a Client. No network call is made until first use.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("erp: empty base url")
	}
	if cfg.Database == "" || cfg.Username == "" {
		return nil, errors.New("erp: database and username are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/jsonrpc",
		db:       cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Login authenticates if no session exists yet and returns the uid.
func (c *Client) Login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uid != 0 {
		return c.uid, nil
	}

	start := time.Now()
	res, err := c.call(ctx, "common", "login", []any{c.db, c.username, c.password})
	if err == nil && (res.Type != gjson.Number || res.Int() <= 0) {
		err = ErrAuthentication
	}
	metrics.ObserveERPCall("common.login", err, time.Since(start))
	if err != nil {
		return 0, err
	}

	c.uid = res.Int()
	return c.uid, nil
}

// Connected reports whether a session uid has been obtained.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid != 0
}

// Database returns the Odoo database name the client is bound to.
func (c *Client) Database() string {
	return c.db
}

// executeKw runs model.method through object.execute_kw.
func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (gjson.Result, error) {
	uid, err := c.Login(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	start := time.Now()
	res, err := c.call(ctx, "object", "execute_kw",
		[]any{c.db, uid, c.password, model, method, args, kwargs})
	metrics.ObserveERPCall(model+"."+method, err, time.Since(start))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return res, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

// call posts one JSON-RPC request and returns the raw result.
func (c *Client) call(ctx context.Context, service, method string, args []any) (gjson.Result, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: %s.%s: %w", service, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("erp: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return gjson.Result{}, fmt.Errorf("erp: http %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("erp: malformed response body")
	}

	doc := gjson.ParseBytes(body)
	if fault := doc.Get("error"); fault.Exists() {
		return gjson.Result{}, &RemoteError{
			Code:    fault.Get("code").Int(),
			Message: fault.Get("message").String(),
			Name:    fault.Get("data.name").String(),
			Detail:  fault.Get("data.message").String(),
		}
	}
	return doc.Get("result"), nil
}
