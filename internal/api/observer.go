package api

import (
	"context"
	"sync/atomic"
	"time"
)

var requestObserver atomic.Pointer[requestObserverHolder]

type requestObserverHolder struct{ RequestObserver }

// RequestObserver receives per-request metrics (wired by main for Prometheus).
type RequestObserver interface {
	ObserveRequest(ctx context.Context, method, route, outcome string, dur time.Duration)
}

// RequestObserverFunc adapts a plain function to RequestObserver.
type RequestObserverFunc func(ctx context.Context, method, route, outcome string, dur time.Duration)

// ObserveRequest implements RequestObserver.
func (f RequestObserverFunc) ObserveRequest(ctx context.Context, method, route, outcome string, dur time.Duration) {
	f(ctx, method, route, outcome, dur)
}

// SetRequestObserver sets the global request observer (typically a Prometheus histogram).
func SetRequestObserver(o RequestObserver) {
	if o == nil {
		requestObserver.Store(nil)
		return
	}
	requestObserver.Store(&requestObserverHolder{RequestObserver: o})
}

func getRequestObserver() RequestObserver {
	h := requestObserver.Load()
	if h == nil {
		return nil
	}
	return h.RequestObserver
}

// outcome buckets a request result for metric labels.
func outcome(status int, err error) string {
	switch {
	case err != nil && status == 0:
		return "transport_error"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "success"
	}
}
