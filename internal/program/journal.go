package program

import (
	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/schema"

	"github.com/samber/lo"
)

const (
	InstructionCreateJournalEntry = "create_journal_entry"
	InstructionUpdateJournalEntry = "update_journal_entry"
	InstructionDeleteJournalEntry = "delete_journal_entry"
)

type JournalEntryArgs struct {
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// JournalProgram keeps one entry per (title, owner) pair.
type JournalProgram struct {
	id address.Address
}

func NewJournalProgram(id address.Address) *JournalProgram {
	if id.IsZero() {
		id = DefaultJournalProgramID
	}
	return &JournalProgram{id: id}
}

func (p *JournalProgram) ID() address.Address { return p.id }
func (p *JournalProgram) Name() string        { return "journal" }

func JournalEntryAddress(program address.Address, title string, owner address.Address) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress(program, journalSeeds(title, owner))
	return addr, bump, hostError(err)
}

func journalSeeds(title string, owner address.Address) [][]byte {
	return [][]byte{[]byte(title), owner.Bytes()}
}

func (p *JournalProgram) Process(tx *ledger.Tx, ix ledger.Instruction) error {
	return p.process(tx, ix)
}

func (p *JournalProgram) process(h Host, ix ledger.Instruction) error {
	entryAddr, err := requireAccount(ix, AccountJournalEntry)
	if err != nil {
		return err
	}
	signer, err := requireAccount(ix, AccountSigner)
	if err != nil {
		return err
	}
	var args JournalEntryArgs
	if err := decodeArgs(ix.Args, &args); err != nil {
		return err
	}
	switch ix.Name {
	case InstructionCreateJournalEntry:
		return p.createJournalEntry(h, entryAddr, signer, args.Title, args.Message)
	case InstructionUpdateJournalEntry:
		return p.updateJournalEntry(h, entryAddr, signer, args.Title, args.Message)
	case InstructionDeleteJournalEntry:
		return p.deleteJournalEntry(h, entryAddr, signer, args.Title)
	default:
		return invalidArgument("unknown journal instruction %q", ix.Name)
	}
}

func (p *JournalProgram) createJournalEntry(h Host, entryAddr, signer address.Address, title, message string) error {
	entry := schema.JournalEntry{Owner: signer, Title: title, Message: message}
	if err := entry.Validate(); err != nil {
		return hostError(err)
	}
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, entryAddr, journalSeeds(title, signer)...); err != nil {
		return err
	}
	if err := ValidateCreate(h, entryAddr, signer, schema.JournalEntrySpace()); err != nil {
		return err
	}
	if err := writeRecord(h, entryAddr, entry.MarshalSlot); err != nil {
		return err
	}
	h.Logf("Journal Entry Created")
	h.Logf("Title: %s", title)
	return nil
}

// updateJournalEntry checks authority before the address so a foreign signer aimed at
// another owner's entry is reported as Unauthorized.
func (p *JournalProgram) updateJournalEntry(h Host, entryAddr, signer address.Address, title, message string) error {
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	stored, err := p.loadEntry(h, entryAddr)
	if err != nil {
		return err
	}
	if err := ValidateAuthority(h, stored.Owner, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, entryAddr, journalSeeds(title, signer)...); err != nil {
		return err
	}
	next := stored
	next.Message = message
	if err := next.Validate(); err != nil {
		return hostError(err)
	}
	if err := Resize(h, entryAddr, next.EncodedSize(), signer); err != nil {
		return err
	}
	if err := writeRecord(h, entryAddr, next.MarshalSlot); err != nil {
		return err
	}
	h.Logf("Journal Entry Updated")
	return nil
}

func (p *JournalProgram) deleteJournalEntry(h Host, entryAddr, signer address.Address, title string) error {
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	stored, err := p.loadEntry(h, entryAddr)
	if err != nil {
		return err
	}
	if err := ValidateAuthority(h, stored.Owner, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, entryAddr, journalSeeds(title, signer)...); err != nil {
		return err
	}
	if err := Close(h, entryAddr, signer); err != nil {
		return err
	}
	h.Logf("Journal Entry Deleted")
	return nil
}

func (p *JournalProgram) loadEntry(h Host, entryAddr address.Address) (schema.JournalEntry, error) {
	data, err := ValidateExisting(h, entryAddr, schema.JournalEntryDiscriminator)
	if err != nil {
		return schema.JournalEntry{}, err
	}
	entry, err := schema.UnmarshalJournalEntry(data)
	if err != nil {
		return schema.JournalEntry{}, hostError(err)
	}
	return entry, nil
}

func (p *JournalProgram) CreateJournalEntryInstruction(signer address.Address, title, message string) (ledger.Instruction, error) {
	return p.instruction(InstructionCreateJournalEntry, signer, JournalEntryArgs{Title: title, Message: message})
}

func (p *JournalProgram) UpdateJournalEntryInstruction(signer address.Address, title, message string) (ledger.Instruction, error) {
	return p.instruction(InstructionUpdateJournalEntry, signer, JournalEntryArgs{Title: title, Message: message})
}

func (p *JournalProgram) DeleteJournalEntryInstruction(signer address.Address, title string) (ledger.Instruction, error) {
	return p.instruction(InstructionDeleteJournalEntry, signer, JournalEntryArgs{Title: title})
}

func (p *JournalProgram) instruction(name string, signer address.Address, args JournalEntryArgs) (ledger.Instruction, error) {
	entryAddr, _, err := JournalEntryAddress(p.id, args.Title, signer)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return buildInstruction(p.id, name, map[string]address.Address{
		AccountJournalEntry: entryAddr,
		AccountSigner:       signer,
	}, args)
}

type JournalEntryRecord struct {
	Address address.Address
	Entry   schema.JournalEntry
}

func (p *JournalProgram) FetchJournalEntry(r AccountReader, entryAddr address.Address) (schema.JournalEntry, error) {
	data, err := fetchValidated(r, p.id, entryAddr, schema.JournalEntryDiscriminator[:])
	if err != nil {
		return schema.JournalEntry{}, err
	}
	entry, err := schema.UnmarshalJournalEntry(data)
	return entry, hostError(err)
}

// ListJournalEntries returns every decodable entry, restricted to owner unless owner is zero.
func (p *JournalProgram) ListJournalEntries(r AccountReader, owner address.Address) []JournalEntryRecord {
	return lo.FilterMap(r.ListAccounts(p.id, schema.JournalEntryDiscriminator[:]), func(item ledger.KeyedAccount, _ int) (JournalEntryRecord, bool) {
		entry, err := schema.UnmarshalJournalEntry(item.Account.Data)
		if err != nil {
			return JournalEntryRecord{}, false
		}
		if !owner.IsZero() && entry.Owner != owner {
			return JournalEntryRecord{}, false
		}
		return JournalEntryRecord{Address: item.Address, Entry: entry}, true
	})
}
