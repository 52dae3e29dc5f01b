package program

import (
	"fmt"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/schema"
)

// Host is the slice of the ledger transaction the programs run against.
type Host interface {
	Program() address.Address
	IsSigner(address.Address) bool
	Account(address.Address) (ledger.Account, bool)
	MutableData(address.Address) ([]byte, error)
	Allocate(addr address.Address, size int, payer, owner address.Address) error
	Reallocate(addr address.Address, newSize int, payer address.Address, zeroFill bool) error
	Deallocate(addr, refundTo address.Address) error
	Logf(format string, args ...any)
}

var _ Host = (*ledger.Tx)(nil)

// ExpectAddress re-derives the slot address from seeds and requires it to equal the
// caller-supplied one byte for byte.
func ExpectAddress(program, supplied address.Address, seeds ...[]byte) (uint8, error) {
	derived, bump, err := address.FindProgramAddress(program, seeds)
	if err != nil {
		return 0, hostError(err)
	}
	if derived != supplied {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrAddressMismatch, derived, supplied)
	}
	return bump, nil
}

func RequireSigner(h Host, id address.Address) error {
	if id.IsZero() || !h.IsSigner(id) {
		return fmt.Errorf("%w: %s did not sign", ErrUnauthorized, id)
	}
	return nil
}

// ValidateCreate requires a fresh slot and allocates space bytes owned by the invoking
// program, paid by payer. A slot holding only loose lamports counts as fresh.
func ValidateCreate(h Host, slot, payer address.Address, space int) error {
	if acc, ok := h.Account(slot); ok && !acc.IsWallet() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, slot)
	}
	if err := RequireSigner(h, payer); err != nil {
		return err
	}
	return hostError(h.Allocate(slot, space, payer, h.Program()))
}

// ValidateExisting requires an initialized slot of the given type owned by the invoking
// program and returns a copy of its data.
func ValidateExisting(h Host, slot address.Address, want schema.Discriminator) ([]byte, error) {
	acc, ok := h.Account(slot)
	if !ok || acc.IsWallet() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, slot)
	}
	if acc.Owner != h.Program() {
		return nil, fmt.Errorf("%w: %s is owned by another program", ErrNotInitialized, slot)
	}
	if !schema.HasDiscriminator(acc.Data, want) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotInitialized, slot, schema.ErrDiscriminatorMismatch)
	}
	return acc.Data, nil
}

// ValidateAuthority requires that signer signed and is the authority stored in the slot.
func ValidateAuthority(h Host, stored, signer address.Address) error {
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	if stored != signer {
		return fmt.Errorf("%w: slot authority is %s", ErrUnauthorized, stored)
	}
	return nil
}

// Resize moves a slot to size bytes. Growth is paid by payer and the new tail reads
// as zero; shrinking refunds payer.
func Resize(h Host, slot address.Address, size int, payer address.Address) error {
	return hostError(h.Reallocate(slot, size, payer, true))
}

// Close zeroes the slot, refunds its whole balance to authority and deallocates it.
func Close(h Host, slot, authority address.Address) error {
	data, err := h.MutableData(slot)
	if err != nil {
		return hostError(err)
	}
	clear(data)
	return hostError(h.Deallocate(slot, authority))
}

func writeRecord(h Host, slot address.Address, marshal func([]byte) error) error {
	data, err := h.MutableData(slot)
	if err != nil {
		return hostError(err)
	}
	return hostError(marshal(data))
}

func requireAccount(ix ledger.Instruction, name string) (address.Address, error) {
	addr, ok := ix.Accounts[name]
	if !ok || addr.IsZero() {
		return address.Zero, invalidArgument("missing account %q", name)
	}
	return addr, nil
}
