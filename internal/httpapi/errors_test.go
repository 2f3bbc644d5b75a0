package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"essaylens/internal/app"
	"essaylens/internal/config"
	"essaylens/internal/kvcache"
	"essaylens/internal/llm"
	"essaylens/internal/supervisor"
	"essaylens/pkg/types"
)

var errUnavailable = fmt.Errorf("chat: %w", app.ErrNotReady)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &config.ValidationError{Unknown: []string{"max_token"}}, http.StatusBadRequest},
		{"decode", &llm.DecodeError{Raw: "nope"}, http.StatusUnprocessableEntity},
		{"too busy", app.ErrTooBusy("queue_full"), http.StatusTooManyRequests},
		{"not ready", errUnavailable, http.StatusServiceUnavailable},
		{"kv not built", fmt.Errorf("open kv engine: %w", kvcache.ErrUnavailable), http.StatusServiceUnavailable},
		{"server missing", &supervisor.NotFoundError{What: "llama-server binary", Path: "/x"}, http.StatusServiceUnavailable},
		{"upstream", &llm.HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, http.StatusBadGateway},
		{"deadline", fmt.Errorf("chat request: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("%s: status=%d want %d", tc.name, got, tc.want)
		}
	}
}

func TestJSONEndpoint_DecodeErrorKeepsRaw(t *testing.T) {
	svc := &mockService{chatErr: &llm.DecodeError{Raw: "I think the name is Ann"}}
	w := postJSON(t, NewMux(svc), "/v1/json", `{"user":"x","schema":{"type":"object"}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Raw != "I think the name is Ann" || e.Code != http.StatusUnprocessableEntity {
		t.Fatalf("error body=%+v", e)
	}
}

func TestChat_TooBusyCountsBackpressure(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("no_slot"))
	svc := &mockService{chatErr: app.ErrTooBusy("no_slot")}
	w := postJSON(t, NewMux(svc), "/v1/chat", `{"user":"x"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("no_slot")); got != before+1 {
		t.Fatalf("backpressure=%v want %v", got, before+1)
	}
}

func TestIncrementBackpressure_EmptyReason(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); got != before+1 {
		t.Fatalf("unspecified=%v want %v", got, before+1)
	}
}
