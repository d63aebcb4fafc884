package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/louisbranch/deltasync/internal/platform/httpx"
	"github.com/louisbranch/deltasync/internal/sync/dispatch"
)

// maxEnvelopeBytes bounds the inbound request envelope.
const maxEnvelopeBytes = 1 << 20

// Routes assembles the sync HTTP surface.
func Routes(dispatcher *dispatch.Dispatcher, verifier *TokenVerifier) http.Handler {
	middleware := []httpx.Middleware{
		httpx.RecoverPanic(),
		httpx.RequestID(),
		httpx.RequireMethod(http.MethodPost),
	}
	if verifier != nil {
		middleware = append(middleware, verifier.Middleware())
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/sync", httpx.Chain(syncHandler(dispatcher), middleware...))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func syncHandler(dispatcher *dispatch.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dispatch.Request
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
		if err := decoder.Decode(&req); err != nil {
			_ = httpx.WriteJSON(w, http.StatusBadRequest, dispatch.Response{
				ErrorMessage: fmt.Sprintf("decode request envelope: %v", err),
				ErrorKind:    dispatch.KindInternalFailure,
			})
			return
		}

		resp := dispatcher.Dispatch(httpx.RequestContext(r), req)
		status := http.StatusOK
		if resp.ErrorKind == dispatch.KindUnknownOperation {
			status = http.StatusBadRequest
		}
		_ = httpx.WriteJSON(w, status, resp)
	})
}
