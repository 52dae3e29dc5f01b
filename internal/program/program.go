package program

import (
	"bytes"
	"encoding/json"
	"fmt"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
)

var (
	DefaultJournalProgramID = address.MustParse("FX6obMKSmgdg5FygYaVqsytTfswENphFiPJ9v5NsFa1B")
	DefaultVotingProgramID  = address.MustParse("Ck1Nt6DDLVTG4Ct76bQPMQFGoZfpici7akiAU42Ec15T")
)

// Account names used in instruction account maps.
const (
	AccountSigner       = "signer"
	AccountJournalEntry = "journal_entry"
	AccountPoll         = "poll"
	AccountCandidate    = "candidate"
)

// AccountReader is the committed, read-only view used by fetch and list paths.
type AccountReader interface {
	GetAccount(address.Address) (ledger.Account, bool)
	ListAccounts(owner address.Address, prefix []byte) []ledger.KeyedAccount
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidArgument("missing instruction args")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidArgument("decode args: %v", err)
	}
	return nil
}

func buildInstruction(program address.Address, name string, accounts map[string]address.Address, args any) (ledger.Instruction, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		Program:  program,
		Name:     name,
		Accounts: accounts,
		Args:     raw,
	}, nil
}

// fetchValidated reads a committed slot with the same checks the write paths apply.
func fetchValidated(r AccountReader, owner, slot address.Address, want []byte) ([]byte, error) {
	acc, ok := r.GetAccount(slot)
	if !ok || acc.IsWallet() || acc.Owner != owner || !bytes.HasPrefix(acc.Data, want) {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, slot)
	}
	return acc.Data, nil
}
