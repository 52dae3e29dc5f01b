package ledger

import (
	"bytes"

	"seedslot/go-backend/internal/address"
)

// SystemProgram owns plain wallets: accounts that only hold lamports.
var SystemProgram = address.Zero

const MaxSlotSize = 10 * 1024 * 1024

type Account struct {
	Owner    address.Address `json:"owner"`
	Lamports uint64          `json:"lamports"`
	Data     []byte          `json:"data"`
}

func (a Account) IsWallet() bool {
	return a.Owner == SystemProgram && len(a.Data) == 0
}

func (a Account) clone() Account {
	out := a
	out.Data = append([]byte(nil), a.Data...)
	return out
}

func accountsEqual(a, b Account) bool {
	return a.Owner == b.Owner && a.Lamports == b.Lamports && bytes.Equal(a.Data, b.Data)
}

// Rent prices storage the way the host does: an account must hold enough lamports
// to cover its size for ExemptionYears.
type Rent struct {
	LamportsPerByteYear uint64 `yaml:"lamportsPerByteYear" json:"lamports_per_byte_year"`
	ExemptionYears      uint64 `yaml:"exemptionYears" json:"exemption_years"`
	AccountOverhead     uint64 `yaml:"accountOverhead" json:"account_overhead"`
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionYears:      2,
		AccountOverhead:     128,
	}
}

func (r Rent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (r.AccountOverhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}
