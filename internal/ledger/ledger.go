package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"seedslot/go-backend/internal/address"
)

const componentName = "ledger"

// Change is one committed account mutation; a nil Account means the slot was erased.
type Change struct {
	Address address.Address
	Account *Account
}

// Store persists committed state. Apply runs before the in-memory swap, so a failing
// Apply aborts the commit.
type Store interface {
	Load() (map[address.Address]Account, error)
	Apply(next map[address.Address]Account, changes []Change) error
	Close() error
}

// Recorder receives commit outcomes for instrumentation.
type Recorder interface {
	ObserveTx(program, instruction, status string, elapsed time.Duration)
	ObserveConflict()
	SetSlotCount(owner string, n int)
}

type Options struct {
	Rent     Rent
	Store    Store
	Recorder Recorder
	Logger   *slog.Logger
	// ReceiptRetention bounds remembered receipts and replay protection.
	ReceiptRetention int
}

type Ledger struct {
	mu       sync.RWMutex
	accounts map[address.Address]Account
	versions map[address.Address]uint64
	seq      uint64
	rent     Rent
	store    Store
	recorder Recorder
	logger   *slog.Logger

	programsMu sync.RWMutex
	programs   map[address.Address]Program

	receipts *receiptLog
}

func New(opts Options) (*Ledger, error) {
	if opts.Rent == (Rent{}) {
		opts.Rent = DefaultRent()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReceiptRetention <= 0 {
		opts.ReceiptRetention = 4096
	}
	l := &Ledger{
		accounts: make(map[address.Address]Account),
		versions: make(map[address.Address]uint64),
		rent:     opts.Rent,
		store:    opts.Store,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		programs: make(map[address.Address]Program),
		receipts: newReceiptLog(opts.ReceiptRetention),
	}
	if l.store != nil {
		loaded, err := l.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load ledger state: %w", err)
		}
		if loaded != nil {
			l.accounts = loaded
		}
	}
	l.reportSlotCounts(l.accounts)
	return l, nil
}

func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func (l *Ledger) Rent() Rent {
	return l.rent
}

// Execute runs fn against a private staged view and commits it atomically. Any error
// from fn discards every staged change.
func (l *Ledger) Execute(ctx context.Context, signers []address.Address, fn func(*Tx) error) error {
	return l.execute(ctx, "", address.Zero, signers, fn)
}

func (l *Ledger) execute(ctx context.Context, txID string, program address.Address, signers []address.Address, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	tx := newTx(txID, l.accounts, l.seq, l.rent, signers)
	l.mu.RUnlock()
	tx.program = program

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.commit(tx)
}

func (l *Ledger) commit(tx *Tx) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr := range tx.reads {
		if l.versions[addr] > tx.beginSeq {
			if l.recorder != nil {
				l.recorder.ObserveConflict()
			}
			return fmt.Errorf("%w: %s", ErrConflict, addr)
		}
	}
	if len(tx.writes) == 0 {
		return nil
	}

	next := make(map[address.Address]Account, len(l.accounts)+len(tx.writes))
	for k, v := range l.accounts {
		next[k] = v
	}
	changes := make([]Change, 0, len(tx.writes))
	for addr, staged := range tx.writes {
		prev, existed := l.accounts[addr]
		if staged == nil {
			if !existed {
				continue
			}
			delete(next, addr)
			changes = append(changes, Change{Address: addr})
			continue
		}
		if existed && accountsEqual(prev, *staged) {
			continue
		}
		acc := staged.clone()
		next[addr] = acc
		changes = append(changes, Change{Address: addr, Account: &acc})
	}
	if len(changes) == 0 {
		return nil
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Address.String() < changes[j].Address.String()
	})
	if l.store != nil {
		if err := l.store.Apply(next, changes); err != nil {
			l.logger.Error("ledger persist failed",
				"component", componentName,
				"operation", "commit",
				"tx_id", tx.id,
				"error", err.Error(),
			)
			return fmt.Errorf("persist ledger state: %w", err)
		}
	}
	l.seq++
	for _, c := range changes {
		l.versions[c.Address] = l.seq
	}
	l.accounts = next
	l.reportSlotCounts(next)
	return nil
}

// Airdrop credits a wallet; it is the faucet of a local ledger.
func (l *Ledger) Airdrop(ctx context.Context, to address.Address, lamports uint64) error {
	if lamports == 0 {
		return errors.New("airdrop amount must be positive")
	}
	return l.Execute(ctx, nil, func(tx *Tx) error {
		return tx.credit(to, lamports)
	})
}

func (l *Ledger) GetAccount(addr address.Address) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return acc.clone(), true
}

func (l *Ledger) GetBalance(addr address.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr].Lamports
}

type KeyedAccount struct {
	Address address.Address
	Account Account
}

// ListAccounts returns every slot owned by owner whose data starts with prefix,
// ordered by address.
func (l *Ledger) ListAccounts(owner address.Address, prefix []byte) []KeyedAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]KeyedAccount, 0)
	for addr, acc := range l.accounts {
		if acc.Owner != owner || !bytes.HasPrefix(acc.Data, prefix) {
			continue
		}
		out = append(out, KeyedAccount{Address: addr, Account: acc.clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

func (l *Ledger) reportSlotCounts(accounts map[address.Address]Account) {
	if l.recorder == nil {
		return
	}
	counts := make(map[address.Address]int)
	for _, acc := range accounts {
		if acc.Owner == SystemProgram {
			continue
		}
		counts[acc.Owner]++
	}
	l.programsMu.RLock()
	for id := range l.programs {
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
	}
	l.programsMu.RUnlock()
	for owner, n := range counts {
		l.recorder.SetSlotCount(owner.String(), n)
	}
}
