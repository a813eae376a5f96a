// Package live is a thin scaffold showing how a real venue plugs a
// domain.ExchangePort implementation into the engine: a WebSocket feed
// connection reusing internal/infra's reconnect-loop worker, and REST
// calls for order placement/cancellation. It decodes nothing venue
//-specific itself — callers supply the wire-format translation, since
// no real exchange integration ships in this repo.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto_go/internal/domain"
	"crypto_go/internal/infra"
)

// Decoder turns a raw WebSocket frame into zero or more domain feed
// updates, invoking whichever of the callbacks apply. A real venue
// adapter supplies this; it is the only venue-specific surface here.
type Decoder func(msg []byte, feeds Feeds)

// Feeds is the set of callbacks a Decoder may invoke as it recognizes
// messages on the wire.
type Feeds struct {
	OnAccount func(domain.AccountSnapshot)
	OnOrders  func([]domain.OpenOrder)
	OnDepth   func(domain.DepthSnapshot)
	OnTicker  func(domain.TickerSnapshot)
}

// Config wires the venue-specific pieces into the adapter.
type Config struct {
	Symbol        string
	WSURL         string
	RESTBaseURL   string
	SubscribeMsgs [][]byte // sent verbatim to the venue right after connect
	Decode        Decoder
	HTTPClient    *http.Client
	AuthHeader    func(req *http.Request) // signs/authenticates a REST request in place
}

// Adapter implements domain.ExchangePort against a real venue's REST
// and WebSocket surface.
type Adapter struct {
	cfg    Config
	worker *infra.BaseWSWorker
	http   *http.Client

	mu          sync.Mutex
	accountSubs []func(domain.AccountSnapshot)
	ordersSubs  []func([]domain.OpenOrder)
	depthSubs   []func(domain.DepthSnapshot)
	tickerSubs  []func(domain.TickerSnapshot)
}

// New builds an Adapter and starts its WebSocket worker under ctx. The
// worker reconnects with backoff on its own; Stop tears it down.
func New(ctx context.Context, cfg Config) *Adapter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	a := &Adapter{cfg: cfg, http: cfg.HTTPClient}
	a.worker = infra.NewBaseWSWorker(&wsHandler{adapter: a})
	a.worker.Start(ctx)
	return a
}

// Stop tears down the WebSocket connection.
func (a *Adapter) Stop() {
	a.worker.Stop()
}

// The Watch* methods keep cb registered for the Adapter's lifetime;
// the Unsubscribe they return is a no-op.
func (a *Adapter) WatchAccount(cb func(domain.AccountSnapshot)) domain.Unsubscribe {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accountSubs = append(a.accountSubs, cb)
	return func() {}
}

func (a *Adapter) WatchOrders(cb func([]domain.OpenOrder)) domain.Unsubscribe {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ordersSubs = append(a.ordersSubs, cb)
	return func() {}
}

func (a *Adapter) WatchDepth(symbol string, cb func(domain.DepthSnapshot)) domain.Unsubscribe {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.depthSubs = append(a.depthSubs, cb)
	return func() {}
}

func (a *Adapter) WatchTicker(symbol string, cb func(domain.TickerSnapshot)) domain.Unsubscribe {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tickerSubs = append(a.tickerSubs, cb)
	return func() {}
}

func (a *Adapter) SupportsTrailingStops() bool { return false }

func (a *Adapter) fanOut() Feeds {
	return Feeds{
		OnAccount: func(s domain.AccountSnapshot) {
			a.mu.Lock()
			subs := append([]func(domain.AccountSnapshot){}, a.accountSubs...)
			a.mu.Unlock()
			for _, cb := range subs {
				cb(s)
			}
		},
		OnOrders: func(o []domain.OpenOrder) {
			a.mu.Lock()
			subs := append([]func([]domain.OpenOrder){}, a.ordersSubs...)
			a.mu.Unlock()
			for _, cb := range subs {
				cb(o)
			}
		},
		OnDepth: func(d domain.DepthSnapshot) {
			a.mu.Lock()
			subs := append([]func(domain.DepthSnapshot){}, a.depthSubs...)
			a.mu.Unlock()
			for _, cb := range subs {
				cb(d)
			}
		},
		OnTicker: func(t domain.TickerSnapshot) {
			a.mu.Lock()
			subs := append([]func(domain.TickerSnapshot){}, a.tickerSubs...)
			a.mu.Unlock()
			for _, cb := range subs {
				cb(t)
			}
		},
	}
}

// restJSON performs a signed JSON REST call and decodes the response.
func (a *Adapter) restJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.RESTBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.AuthHeader != nil {
		a.cfg.AuthHeader(req)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{Source: method + " " + path}
	}
	if resp.StatusCode >= 500 {
		return &domain.TransportError{Op: method + " " + path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode >= 400 {
		return &domain.RejectedError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (a *Adapter) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OpenOrder, error) {
	var out domain.OpenOrder
	err := a.restJSON(ctx, http.MethodPost, "/orders", req, &out)
	return out, err
}

func (a *Adapter) CancelOrder(ctx context.Context, req domain.CancelOrderRequest) error {
	return a.restJSON(ctx, http.MethodDelete, fmt.Sprintf("/orders/%s/%s", req.Symbol, req.OrderID), nil, nil)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, symbol string) error {
	return a.restJSON(ctx, http.MethodDelete, "/orders/"+symbol, nil, nil)
}

// wsHandler adapts Adapter to infra.WebSocketHandler.
type wsHandler struct {
	adapter *Adapter
}

func (h *wsHandler) ID() string     { return "live-exchange" }
func (h *wsHandler) GetURL() string { return h.adapter.cfg.WSURL }

func (h *wsHandler) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	for _, msg := range h.adapter.cfg.SubscribeMsgs {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *wsHandler) OnMessage(ctx context.Context, msg []byte) {
	if h.adapter.cfg.Decode == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("live adapter decoder panicked", slog.Any("panic", r))
		}
	}()
	h.adapter.cfg.Decode(msg, h.adapter.fanOut())
}

func (h *wsHandler) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}
