package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crypto_go/internal/domain"
)

func newTestAdapter(baseURL string) *Adapter {
	return &Adapter{
		cfg:  Config{RESTBaseURL: baseURL},
		http: http.DefaultClient,
	}
}

func TestRestJSON_TooManyRequestsMapsToRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	err := a.restJSON(context.Background(), http.MethodGet, "/orders", nil, nil)

	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected *domain.RateLimitError, got %v (%T)", err, err)
	}
}

func TestRestJSON_ServerErrorMapsToTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	err := a.restJSON(context.Background(), http.MethodGet, "/orders", nil, nil)

	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *domain.TransportError, got %v (%T)", err, err)
	}
}

func TestRestJSON_ClientErrorMapsToRejectedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad symbol"))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	err := a.restJSON(context.Background(), http.MethodPost, "/orders", map[string]string{"symbol": "X"}, nil)

	var re *domain.RejectedError
	if !errors.As(err, &re) {
		t.Fatalf("expected *domain.RejectedError, got %v (%T)", err, err)
	}
}

func TestRestJSON_SuccessDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":"123","symbol":"BTCUSDT"}`))
	}))
	defer srv.Close()

	a := newTestAdapter(srv.URL)
	var out domain.OpenOrder
	if err := a.restJSON(context.Background(), http.MethodGet, "/orders/123", nil, &out); err != nil {
		t.Fatalf("restJSON: %v", err)
	}
	if out.OrderID != "123" || out.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestRestJSON_NetworkFailureMapsToTransportError(t *testing.T) {
	a := newTestAdapter("http://127.0.0.1:0")
	err := a.restJSON(context.Background(), http.MethodGet, "/orders", nil, nil)

	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *domain.TransportError, got %v (%T)", err, err)
	}
}

func TestFanOut_DispatchesToAllRegisteredSubscribers(t *testing.T) {
	a := newTestAdapter("http://example.invalid")

	var accountCalls, ordersCalls, depthCalls, tickerCalls int
	a.WatchAccount(func(domain.AccountSnapshot) { accountCalls++ })
	a.WatchOrders(func([]domain.OpenOrder) { ordersCalls++ })
	a.WatchDepth("BTCUSDT", func(domain.DepthSnapshot) { depthCalls++ })
	a.WatchTicker("BTCUSDT", func(domain.TickerSnapshot) { tickerCalls++ })

	feeds := a.fanOut()
	feeds.OnAccount(domain.AccountSnapshot{})
	feeds.OnOrders(nil)
	feeds.OnDepth(domain.DepthSnapshot{})
	feeds.OnTicker(domain.TickerSnapshot{})

	if accountCalls != 1 || ordersCalls != 1 || depthCalls != 1 || tickerCalls != 1 {
		t.Fatalf("expected each subscriber called once, got account=%d orders=%d depth=%d ticker=%d",
			accountCalls, ordersCalls, depthCalls, tickerCalls)
	}
}

func TestFanOut_MultipleSubscribersAllReceive(t *testing.T) {
	a := newTestAdapter("http://example.invalid")

	var first, second bool
	a.WatchTicker("BTCUSDT", func(domain.TickerSnapshot) { first = true })
	a.WatchTicker("BTCUSDT", func(domain.TickerSnapshot) { second = true })

	a.fanOut().OnTicker(domain.TickerSnapshot{})

	if !first || !second {
		t.Fatalf("expected both subscribers invoked, got first=%v second=%v", first, second)
	}
}
