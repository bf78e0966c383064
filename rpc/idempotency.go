package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"lukechampine.com/blake3"

	"bazaar/indexer"
)

const headerIdempotencyKey = "Idempotency-Key"

// IdempotencyStore persists served responses keyed by principal and
// Idempotency-Key.
type IdempotencyStore interface {
	LookupIdempotency(ctx context.Context, principal, key, requestHash string) (*indexer.IdempotencyRecord, error)
	SaveIdempotency(ctx context.Context, rec *indexer.IdempotencyRecord) error
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}

func hashRequest(method string, params []byte) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(params)
	return hex.EncodeToString(h.Sum(nil))
}

// principalOf scopes idempotency keys to the presented credential without
// storing it.
func principalOf(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "anonymous"
	}
	sum := blake3.Sum256([]byte(header))
	return hex.EncodeToString(sum[:16])
}

func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler handlerFunc) {
	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key == "" || s.idempotency == nil {
		handler(w, r, req)
		return
	}
	var params bytes.Buffer
	for _, raw := range req.Params {
		params.Write(bytes.TrimSpace(raw))
		params.WriteByte(',')
	}
	principal := principalOf(r)
	requestHash := hashRequest(req.Method, params.Bytes())

	cached, err := s.idempotency.LookupIdempotency(r.Context(), principal, key, requestHash)
	switch {
	case errors.Is(err, indexer.ErrIdempotencyMismatch):
		writeError(w, http.StatusConflict, req.ID, codeConflict, "idempotency key reused with a different request", key)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "idempotency lookup failed", err.Error())
		return
	case cached != nil:
		w.Header().Set("Idempotent-Replayed", "true")
		if cached.Status != http.StatusOK {
			w.WriteHeader(cached.Status)
		}
		_, _ = w.Write([]byte(cached.Response))
		return
	}

	recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, r, req)
	if recorder.status >= http.StatusInternalServerError || recorder.status == http.StatusTooManyRequests {
		return
	}
	rec := &indexer.IdempotencyRecord{
		Key:         key,
		Principal:   principal,
		RequestHash: requestHash,
		Method:      req.Method,
		Status:      recorder.status,
		Response:    recorder.buf.String(),
	}
	if err := s.idempotency.SaveIdempotency(r.Context(), rec); err != nil {
		s.logger.Warn("store idempotent response failed", "method", req.Method, "error", err)
	}
}
