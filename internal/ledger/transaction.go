package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"seedslot/go-backend/internal/address"

	"github.com/google/uuid"
)

// Program is on-ledger logic. Process runs inside a transaction whose invoking
// program is the one returned by ID.
type Program interface {
	ID() address.Address
	Name() string
	Process(tx *Tx, ix Instruction) error
}

type Instruction struct {
	Program  address.Address            `json:"program"`
	Name     string                     `json:"name"`
	Accounts map[string]address.Address `json:"accounts"`
	Args     json.RawMessage            `json:"args"`
}

type Message struct {
	ID          string            `json:"id"`
	Signers     []address.Address `json:"signers"`
	Instruction Instruction       `json:"instruction"`
}

type Signature struct {
	Signer    address.Address `json:"signer"`
	Signature []byte          `json:"signature"`
}

type SignedTransaction struct {
	Message    json.RawMessage `json:"message"`
	Signatures []Signature     `json:"signatures"`
}

func NewMessage(ix Instruction, signers ...address.Address) Message {
	return Message{
		ID:          uuid.NewString(),
		Signers:     signers,
		Instruction: ix,
	}
}

// Sign encodes the message once and signs those exact bytes with every key.
func Sign(msg Message, keys ...ed25519.PrivateKey) (SignedTransaction, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return SignedTransaction{}, err
	}
	out := SignedTransaction{Message: raw}
	for _, key := range keys {
		if len(key) != ed25519.PrivateKeySize {
			return SignedTransaction{}, fmt.Errorf("%w: private key size %d", ErrMalformedTransaction, len(key))
		}
		signer, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
		if err != nil {
			return SignedTransaction{}, err
		}
		out.Signatures = append(out.Signatures, Signature{
			Signer:    signer,
			Signature: ed25519.Sign(key, raw),
		})
	}
	return out, nil
}

// Verify decodes the message and checks that every declared signer signed it.
func Verify(stx SignedTransaction) (Message, error) {
	var msg Message
	if err := json.Unmarshal(stx.Message, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if strings.TrimSpace(msg.ID) == "" || len(msg.Signers) == 0 || msg.Instruction.Name == "" {
		return Message{}, ErrMalformedTransaction
	}
	bySigner := make(map[address.Address][]byte, len(stx.Signatures))
	for _, sig := range stx.Signatures {
		bySigner[sig.Signer] = sig.Signature
	}
	for _, signer := range msg.Signers {
		sig, ok := bySigner[signer]
		if !ok {
			return Message{}, fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(signer[:]), stx.Message, sig) {
			return Message{}, fmt.Errorf("%w: %s", ErrSignatureInvalid, signer)
		}
	}
	return msg, nil
}

func (l *Ledger) Register(p Program) {
	l.programsMu.Lock()
	l.programs[p.ID()] = p
	l.programsMu.Unlock()
}

func (l *Ledger) program(id address.Address) (Program, bool) {
	l.programsMu.RLock()
	defer l.programsMu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// Submit verifies signatures and runs the instruction as one atomic transaction.
func (l *Ledger) Submit(ctx context.Context, stx SignedTransaction) (Receipt, error) {
	msg, err := Verify(stx)
	if err != nil {
		return Receipt{}, err
	}
	prog, ok := l.program(msg.Instruction.Program)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownProgram, msg.Instruction.Program)
	}
	if !l.receipts.reserve(msg.ID) {
		return Receipt{}, fmt.Errorf("%w: %s", ErrDuplicateTransaction, msg.ID)
	}

	started := time.Now()
	var logs []string
	execErr := l.execute(ctx, msg.ID, prog.ID(), msg.Signers, func(tx *Tx) error {
		err := prog.Process(tx, msg.Instruction)
		logs = tx.Logs()
		return err
	})

	receipt := Receipt{
		TxID:        msg.ID,
		Program:     prog.Name(),
		Instruction: msg.Instruction.Name,
		Status:      StatusOK,
		Logs:        logs,
		ProcessedAt: time.Now().UTC(),
	}
	if execErr != nil {
		receipt.Status = StatusFailed
		receipt.Error = execErr.Error()
	}
	if l.recorder != nil {
		l.recorder.ObserveTx(prog.Name(), msg.Instruction.Name, receipt.Status, time.Since(started))
	}
	if errors.Is(execErr, ErrConflict) {
		// A conflicted attempt may be resubmitted under the same id.
		l.receipts.release(msg.ID)
	} else {
		l.receipts.store(receipt)
	}
	level := l.logger.Info
	if execErr != nil {
		level = l.logger.Warn
	}
	level("transaction processed",
		"component", componentName,
		"operation", msg.Instruction.Name,
		"tx_id", msg.ID,
		"program", prog.Name(),
		"signers", signerStrings(msg.Signers),
		"status", receipt.Status,
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return receipt, execErr
}

func signerStrings(signers []address.Address) []string {
	out := make([]string, len(signers))
	for i, s := range signers {
		out[i] = s.String()
	}
	return out
}

func (l *Ledger) Receipt(txID string) (Receipt, bool) {
	return l.receipts.get(txID)
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Receipt struct {
	TxID        string    `json:"tx_id"`
	Program     string    `json:"program"`
	Instruction string    `json:"instruction"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Logs        []string  `json:"logs,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type receiptLog struct {
	mu       sync.Mutex
	limit    int
	order    []string
	byID     map[string]Receipt
	inFlight map[string]struct{}
}

func newReceiptLog(limit int) *receiptLog {
	return &receiptLog{
		limit:    limit,
		byID:     make(map[string]Receipt),
		inFlight: make(map[string]struct{}),
	}
}

func (r *receiptLog) reserve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return false
	}
	if _, ok := r.inFlight[id]; ok {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *receiptLog) release(id string) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

func (r *receiptLog) store(receipt Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, receipt.TxID)
	r.byID[receipt.TxID] = receipt
	r.order = append(r.order, receipt.TxID)
	for len(r.order) > r.limit {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *receiptLog) get(id string) (Receipt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	receipt, ok := r.byID[id]
	return receipt, ok
}
