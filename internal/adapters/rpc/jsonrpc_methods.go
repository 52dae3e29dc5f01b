package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/program"
	"seedslot/go-backend/internal/schema"
	"seedslot/go-backend/pkg/models"

	"github.com/samber/lo"
)

// MaxAirdropLamports caps a single faucet credit.
const MaxAirdropLamports uint64 = 1_000_000_000_000

type submitParams struct {
	Message    json.RawMessage    `json:"message" validate:"required"`
	Signatures []ledger.Signature `json:"signatures" validate:"required,min=1"`
}

type addressParams struct {
	Address address.Address `json:"address" validate:"required"`
}

type receiptParams struct {
	TxID string `json:"tx_id" validate:"required,max=128"`
}

type airdropParams struct {
	Address  address.Address `json:"address" validate:"required"`
	Lamports uint64          `json:"lamports" validate:"gt=0,lte=1000000000000"`
}

type deriveParams struct {
	Kind          string          `json:"kind" validate:"required,oneof=journal_entry poll candidate"`
	Title         string          `json:"title"`
	Owner         address.Address `json:"owner"`
	PollID        uint64          `json:"poll_id"`
	CandidateName string          `json:"candidate_name"`
}

type journalEntryParams struct {
	Owner address.Address `json:"owner" validate:"required"`
	Title string          `json:"title" validate:"required"`
}

type listJournalParams struct {
	Owner address.Address `json:"owner"`
}

type pollParams struct {
	PollID uint64 `json:"poll_id"`
}

type candidateParams struct {
	PollID        uint64 `json:"poll_id"`
	CandidateName string `json:"candidate_name" validate:"required"`
}

func (s *Server) submitTransaction(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var p submitParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	signers := lo.Map(p.Signatures, func(sig ledger.Signature, _ int) address.Address { return sig.Signer })
	if !s.allowSigners(signers, time.Now()) {
		return nil, rpcRateLimited()
	}
	receipt, err := s.backend.Submit(ctx, ledger.SignedTransaction{Message: p.Message, Signatures: p.Signatures})
	if err != nil {
		rpcErr := rpcServiceError(err)
		rpcErr.Data.TxID = receipt.TxID
		rpcErr.Data.Logs = receipt.Logs
		return nil, rpcErr
	}
	return toReceipt(receipt), nil
}

func (s *Server) getReceipt(raw json.RawMessage) (any, *rpcError) {
	var p receiptParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	receipt, ok := s.backend.Receipt(p.TxID)
	if !ok {
		return nil, rpcServiceError(fmt.Errorf("%w: %s", errReceiptNotFound, p.TxID))
	}
	return toReceipt(receipt), nil
}

func (s *Server) getAccount(raw json.RawMessage) (any, *rpcError) {
	var p addressParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	acc, ok := s.backend.GetAccount(p.Address)
	if !ok {
		return nil, rpcServiceError(fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, p.Address))
	}
	return toAccount(p.Address, acc), nil
}

func (s *Server) getBalance(raw json.RawMessage) (any, *rpcError) {
	var p addressParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return models.Balance{Address: p.Address.String(), Lamports: s.backend.GetBalance(p.Address)}, nil
}

func (s *Server) airdrop(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var p airdropParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.Airdrop(ctx, p.Address, p.Lamports); err != nil {
		return nil, rpcServiceError(err)
	}
	return models.Balance{Address: p.Address.String(), Lamports: s.backend.GetBalance(p.Address)}, nil
}

func (s *Server) deriveAddress(raw json.RawMessage) (any, *rpcError) {
	var p deriveParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	var (
		owner = s.voting.ID()
		addr  address.Address
		bump  uint8
		err   error
	)
	switch p.Kind {
	case "journal_entry":
		if p.Owner.IsZero() {
			return nil, rpcInvalidParams(errors.New("owner is required for journal_entry"))
		}
		owner = s.journal.ID()
		addr, bump, err = program.JournalEntryAddress(owner, p.Title, p.Owner)
	case "poll":
		addr, bump, err = program.PollAddress(owner, p.PollID)
	case "candidate":
		if p.CandidateName == "" {
			return nil, rpcInvalidParams(errors.New("candidate_name is required for candidate"))
		}
		addr, bump, err = program.CandidateAddress(owner, p.PollID, p.CandidateName)
	}
	if err != nil {
		return nil, rpcInvalidParams(err)
	}
	return models.DerivedAddress{Program: owner.String(), Address: addr.String(), Bump: bump}, nil
}

func (s *Server) fetchJournalEntry(raw json.RawMessage) (any, *rpcError) {
	var p journalEntryParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, _, err := program.JournalEntryAddress(s.journal.ID(), p.Title, p.Owner)
	if err != nil {
		return nil, rpcInvalidParams(err)
	}
	entry, err := s.journal.FetchJournalEntry(s.backend, addr)
	if err != nil {
		return nil, rpcServiceError(err)
	}
	return toJournalEntry(addr, entry), nil
}

func (s *Server) listJournalEntries(raw json.RawMessage) (any, *rpcError) {
	var p listJournalParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	records := s.journal.ListJournalEntries(s.backend, p.Owner)
	return lo.Map(records, func(rec program.JournalEntryRecord, _ int) models.JournalEntry {
		return toJournalEntry(rec.Address, rec.Entry)
	}), nil
}

func (s *Server) fetchPoll(raw json.RawMessage) (any, *rpcError) {
	var p pollParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	poll, err := s.voting.FetchPoll(s.backend, p.PollID)
	if err != nil {
		return nil, rpcServiceError(err)
	}
	return s.toPoll(poll), nil
}

func (s *Server) listPolls(raw json.RawMessage) (any, *rpcError) {
	var p struct{}
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return lo.Map(s.voting.ListPolls(s.backend), func(poll schema.Poll, _ int) models.Poll {
		return s.toPoll(poll)
	}), nil
}

func (s *Server) fetchCandidate(raw json.RawMessage) (any, *rpcError) {
	var p candidateParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	candidate, err := s.voting.FetchCandidate(s.backend, p.PollID, p.CandidateName)
	if err != nil {
		return nil, rpcServiceError(err)
	}
	return s.toCandidate(p.PollID, candidate), nil
}

func (s *Server) listCandidates(raw json.RawMessage) (any, *rpcError) {
	var p pollParams
	if rpcErr := s.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return lo.Map(s.voting.ListCandidates(s.backend, p.PollID), func(c schema.Candidate, _ int) models.Candidate {
		return s.toCandidate(p.PollID, c)
	}), nil
}

func (s *Server) health() models.Health {
	return models.Health{
		Status:  "ok",
		Version: s.version,
		Storage: models.NormalizeStorageDriver(s.storage),
		Programs: models.Programs{
			Journal: s.journal.ID().String(),
			Voting:  s.voting.ID().String(),
		},
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		CheckedAt:     time.Now().UTC(),
	}
}

func toReceipt(r ledger.Receipt) models.Receipt {
	return models.Receipt{
		TxID:        r.TxID,
		Program:     r.Program,
		Instruction: r.Instruction,
		Status:      r.Status,
		Error:       r.Error,
		Logs:        r.Logs,
		ProcessedAt: r.ProcessedAt,
	}
}

func toAccount(addr address.Address, acc ledger.Account) models.Account {
	return models.Account{
		Address:  addr.String(),
		Owner:    acc.Owner.String(),
		Lamports: acc.Lamports,
		Space:    len(acc.Data),
		Data:     acc.Data,
	}
}

func toJournalEntry(addr address.Address, e schema.JournalEntry) models.JournalEntry {
	return models.JournalEntry{
		Address: addr.String(),
		Owner:   e.Owner.String(),
		Title:   e.Title,
		Message: e.Message,
	}
}

func (s *Server) toPoll(p schema.Poll) models.Poll {
	addr, _, _ := program.PollAddress(s.voting.ID(), p.PollID)
	return models.Poll{
		Address:         addr.String(),
		PollID:          p.PollID,
		Description:     p.Description,
		PollStart:       p.PollStart,
		PollEnd:         p.PollEnd,
		CandidateAmount: p.CandidateAmount,
	}
}

func (s *Server) toCandidate(pollID uint64, c schema.Candidate) models.Candidate {
	addr, _, _ := program.CandidateAddress(s.voting.ID(), pollID, c.CandidateName)
	return models.Candidate{
		Address:        addr.String(),
		PollID:         pollID,
		CandidateName:  c.CandidateName,
		CandidateVotes: c.CandidateVotes,
	}
}
