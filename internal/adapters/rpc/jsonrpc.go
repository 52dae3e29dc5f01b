package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.authorizeRPC(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow(rpcRateLimitKey(r, extractRPCToken(r)), time.Now()) {
		s.recordError("RateLimited")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: rpcRateLimited()})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: CodeParseError, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	reqID := fmt.Sprintf("rpc_%d", time.Now().UnixNano())
	started := time.Now()
	s.logger.Info("rpc request", "component", "rpc", "request_id", reqID, "method", req.Method, "rpc_id", string(req.ID))

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	result, rpcErr := s.dispatchRPC(ctx, req.Method, req.Params)
	if rpcErr != nil {
		kind := ""
		if rpcErr.Data != nil {
			kind = rpcErr.Data.Kind
			s.recordError(kind)
		}
		s.logger.Warn("rpc failed",
			"component", "rpc",
			"request_id", reqID,
			"method", req.Method,
			"rpc_code", rpcErr.Code,
			"kind", kind,
			"latency_ms", time.Since(started).Milliseconds(),
		)
	} else {
		s.logger.Info("rpc response", "component", "rpc", "request_id", reqID, "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatchRPC(ctx context.Context, method string, raw json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return s.health(), nil
	case "metrics":
		if s.recorder == nil {
			return nil, &rpcError{Code: CodeInternal, Message: "metrics are disabled", Data: &errorData{Kind: "MetricsDisabled"}}
		}
		return s.recorder.Snapshot(), nil
	case "submit_transaction":
		return s.submitTransaction(ctx, raw)
	case "get_receipt":
		return s.getReceipt(raw)
	case "get_account":
		return s.getAccount(raw)
	case "get_balance":
		return s.getBalance(raw)
	case "airdrop":
		return s.airdrop(ctx, raw)
	case "derive_address":
		return s.deriveAddress(raw)
	case "fetch_journal_entry":
		return s.fetchJournalEntry(raw)
	case "list_journal_entries":
		return s.listJournalEntries(raw)
	case "fetch_poll":
		return s.fetchPoll(raw)
	case "list_polls":
		return s.listPolls(raw)
	case "fetch_candidate":
		return s.fetchCandidate(raw)
	case "list_candidates":
		return s.listCandidates(raw)
	}
	return nil, &rpcError{Code: CodeMethodNotFound, Message: "method not found"}
}

// decodeParams accepts a params object only. Missing params decode as {}.
func (s *Server) decodeParams(raw json.RawMessage, v any) *rpcError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return rpcInvalidParams(err)
	}
	if err := s.validate.Struct(v); err != nil {
		return rpcInvalidParams(err)
	}
	return nil
}

func rpcRateLimited() *rpcError {
	return &rpcError{Code: CodeRateLimited, Message: "rate limit exceeded", Data: &errorData{Kind: "RateLimited", Retryable: true}}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: CodeInvalidRequest, Message: "invalid request"},
	})
}
