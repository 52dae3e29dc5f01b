package rpc

import (
	"errors"
	"fmt"

	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/program"
)

// JSON-RPC protocol codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Ledger codes. Program taxonomy errors keep their own 6000+ codes.
const (
	CodeLedger               = -32000
	CodeConflict             = -32010
	CodeInsufficientFunds    = -32011
	CodeAccountNotFound      = -32012
	CodeUnknownProgram       = -32013
	CodeSignatureRejected    = -32014
	CodeDuplicateTransaction = -32015
	CodeMalformedTransaction = -32016
	CodeReceiptNotFound      = -32017
	CodeRateLimited          = -32029
)

var errReceiptNotFound = errors.New("receipt not found")

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Kind      string   `json:"kind"`
	Retryable bool     `json:"retryable,omitempty"`
	TxID      string   `json:"tx_id,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

type ledgerCode struct {
	err  error
	code int
	kind string
}

var ledgerCodes = []ledgerCode{
	{ledger.ErrConflict, CodeConflict, "Conflict"},
	{ledger.ErrInsufficientFunds, CodeInsufficientFunds, "InsufficientFunds"},
	{ledger.ErrAccountNotFound, CodeAccountNotFound, "AccountNotFound"},
	{ledger.ErrUnknownProgram, CodeUnknownProgram, "UnknownProgram"},
	{ledger.ErrMissingSignature, CodeSignatureRejected, "MissingSignature"},
	{ledger.ErrSignatureInvalid, CodeSignatureRejected, "SignatureInvalid"},
	{ledger.ErrDuplicateTransaction, CodeDuplicateTransaction, "DuplicateTransaction"},
	{ledger.ErrMalformedTransaction, CodeMalformedTransaction, "MalformedTransaction"},
	{errReceiptNotFound, CodeReceiptNotFound, "ReceiptNotFound"},
}

func rpcInvalidParams(err error) *rpcError {
	msg := "invalid params"
	if err != nil {
		msg = fmt.Sprintf("invalid params: %v", err)
	}
	return &rpcError{Code: CodeInvalidParams, Message: msg, Data: &errorData{Kind: "InvalidParams"}}
}

// rpcServiceError maps program taxonomy and ledger errors onto stable codes.
func rpcServiceError(err error) *rpcError {
	if kind, ok := program.Classify(err); ok {
		return &rpcError{Code: kind.Code, Message: err.Error(), Data: &errorData{Kind: kind.Kind}}
	}
	for _, c := range ledgerCodes {
		if errors.Is(err, c.err) {
			return &rpcError{
				Code:    c.code,
				Message: err.Error(),
				Data:    &errorData{Kind: c.kind, Retryable: ledger.IsRetryable(err)},
			}
		}
	}
	return &rpcError{Code: CodeLedger, Message: err.Error(), Data: &errorData{Kind: "Ledger"}}
}

// RemoteError is a JSON-RPC error object returned to a caller. It unwraps to the
// sentinel its code stands for, so errors.Is works across the wire.
type RemoteError struct {
	Code    int
	Message string
	Kind    string
	TxID    string
	Logs    []string
}

func (e *RemoteError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Kind, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	if e.Code >= 6000 {
		for _, kind := range program.Taxonomy() {
			if kind.Code == e.Code {
				return kind
			}
		}
		return nil
	}
	for _, c := range ledgerCodes {
		if c.code == e.Code && (e.Kind == "" || e.Kind == c.kind) {
			return c.err
		}
	}
	return nil
}
