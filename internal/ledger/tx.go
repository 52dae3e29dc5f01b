package ledger

import (
	"fmt"
	"math"

	"seedslot/go-backend/internal/address"
)

// Tx stages every read and write of one operation. Nothing it does is visible to
// other transactions until the ledger commits it.
type Tx struct {
	id       string
	program  address.Address
	rent     Rent
	base     map[address.Address]Account
	beginSeq uint64
	reads    map[address.Address]struct{}
	writes   map[address.Address]*Account
	signers  map[address.Address]struct{}
	logs     []string
}

func newTx(id string, base map[address.Address]Account, seq uint64, rent Rent, signers []address.Address) *Tx {
	tx := &Tx{
		id:       id,
		rent:     rent,
		base:     base,
		beginSeq: seq,
		reads:    make(map[address.Address]struct{}),
		writes:   make(map[address.Address]*Account),
		signers:  make(map[address.Address]struct{}, len(signers)),
	}
	for _, s := range signers {
		tx.signers[s] = struct{}{}
	}
	return tx
}

func (tx *Tx) ID() string {
	return tx.id
}

func (tx *Tx) Program() address.Address {
	return tx.program
}

func (tx *Tx) Rent() Rent {
	return tx.rent
}

func (tx *Tx) IsSigner(addr address.Address) bool {
	_, ok := tx.signers[addr]
	return ok
}

func (tx *Tx) Signers() []address.Address {
	out := make([]address.Address, 0, len(tx.signers))
	for s := range tx.signers {
		out = append(out, s)
	}
	return out
}

func (tx *Tx) Logf(format string, args ...any) {
	tx.logs = append(tx.logs, fmt.Sprintf(format, args...))
}

func (tx *Tx) Logs() []string {
	return append([]string(nil), tx.logs...)
}

// Account returns a copy of the account as this transaction currently sees it.
func (tx *Tx) Account(addr address.Address) (Account, bool) {
	acc, ok := tx.lookup(addr)
	if !ok {
		return Account{}, false
	}
	return acc.clone(), true
}

func (tx *Tx) Balance(addr address.Address) uint64 {
	acc, ok := tx.lookup(addr)
	if !ok {
		return 0
	}
	return acc.Lamports
}

// MutableData returns the staged, writable data of an account owned by the invoking program.
func (tx *Tx) MutableData(addr address.Address) ([]byte, error) {
	acc, err := tx.stageOwned(addr)
	if err != nil {
		return nil, err
	}
	return acc.Data, nil
}

// Allocate creates a program-owned slot of size bytes funded by payer. The target may
// already hold loose lamports but never data or another owner.
func (tx *Tx) Allocate(addr address.Address, size int, payer, owner address.Address) error {
	if size < 0 || size > MaxSlotSize {
		return fmt.Errorf("%w: %d", ErrSlotTooLarge, size)
	}
	if !tx.IsSigner(payer) {
		return ErrPayerNotSigner
	}
	existing, ok := tx.lookup(addr)
	if ok && !existing.IsWallet() {
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}
	required := tx.rent.MinimumBalance(size)
	var topUp uint64
	if existing.Lamports < required {
		topUp = required - existing.Lamports
	}
	if err := tx.debit(payer, topUp); err != nil {
		return err
	}
	tx.put(addr, &Account{
		Owner:    owner,
		Lamports: existing.Lamports + topUp,
		Data:     make([]byte, size),
	})
	return nil
}

// Reallocate resizes a program-owned slot. Growth is charged to payer, shrinking
// refunds the rent difference to payer. With zeroFill every byte past the old length
// reads as zero.
func (tx *Tx) Reallocate(addr address.Address, newSize int, payer address.Address, zeroFill bool) error {
	if newSize < 0 || newSize > MaxSlotSize {
		return fmt.Errorf("%w: %d", ErrSlotTooLarge, newSize)
	}
	acc, err := tx.stageOwned(addr)
	if err != nil {
		return err
	}
	oldLen := len(acc.Data)
	if newSize == oldLen {
		return nil
	}
	required := tx.rent.MinimumBalance(newSize)
	switch {
	case required > acc.Lamports:
		if !tx.IsSigner(payer) {
			return ErrPayerNotSigner
		}
		delta := required - acc.Lamports
		if err := tx.debit(payer, delta); err != nil {
			return err
		}
		acc.Lamports += delta
	case required < acc.Lamports:
		if err := tx.credit(payer, acc.Lamports-required); err != nil {
			return err
		}
		acc.Lamports = required
	}
	if newSize <= cap(acc.Data) {
		acc.Data = acc.Data[:newSize]
		if zeroFill && newSize > oldLen {
			clear(acc.Data[oldLen:])
		}
		return nil
	}
	grown := make([]byte, newSize)
	copy(grown, acc.Data)
	acc.Data = grown
	return nil
}

// Deallocate erases a program-owned slot and moves all of its lamports to refundTo.
func (tx *Tx) Deallocate(addr, refundTo address.Address) error {
	acc, err := tx.stageOwned(addr)
	if err != nil {
		return err
	}
	clear(acc.Data)
	lamports := acc.Lamports
	acc.Lamports = 0
	tx.writes[addr] = nil
	return tx.credit(refundTo, lamports)
}

// Transfer moves lamports between system wallets. The sender must sign.
func (tx *Tx) Transfer(from, to address.Address, lamports uint64) error {
	if !tx.IsSigner(from) {
		return ErrPayerNotSigner
	}
	if err := tx.debit(from, lamports); err != nil {
		return err
	}
	return tx.credit(to, lamports)
}

func (tx *Tx) lookup(addr address.Address) (Account, bool) {
	tx.reads[addr] = struct{}{}
	if staged, ok := tx.writes[addr]; ok {
		if staged == nil {
			return Account{}, false
		}
		return *staged, true
	}
	acc, ok := tx.base[addr]
	return acc, ok
}

func (tx *Tx) stage(addr address.Address) (*Account, bool) {
	tx.reads[addr] = struct{}{}
	if staged, ok := tx.writes[addr]; ok {
		return staged, staged != nil
	}
	acc, ok := tx.base[addr]
	if !ok {
		return nil, false
	}
	cp := acc.clone()
	tx.writes[addr] = &cp
	return &cp, true
}

func (tx *Tx) stageOwned(addr address.Address) (*Account, error) {
	acc, ok := tx.stage(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if acc.Owner != tx.program {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, addr)
	}
	return acc, nil
}

func (tx *Tx) put(addr address.Address, acc *Account) {
	tx.reads[addr] = struct{}{}
	tx.writes[addr] = acc
}

func (tx *Tx) debit(addr address.Address, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	acc, ok := tx.stage(addr)
	if !ok || acc.Lamports < lamports {
		have := uint64(0)
		if ok {
			have = acc.Lamports
		}
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, addr, have, lamports)
	}
	acc.Lamports -= lamports
	if acc.Lamports == 0 && acc.IsWallet() {
		tx.writes[addr] = nil
	}
	return nil
}

func (tx *Tx) credit(addr address.Address, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	acc, ok := tx.stage(addr)
	if !ok {
		tx.put(addr, &Account{Owner: SystemProgram, Lamports: lamports})
		return nil
	}
	if acc.Lamports > math.MaxUint64-lamports {
		return ErrBalanceOverflow
	}
	acc.Lamports += lamports
	return nil
}
