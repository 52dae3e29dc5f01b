package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"seedslot/go-backend/internal/address"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfoSigner = "seedslot/signer/ed25519/v1"

var (
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")
	ErrMnemonicRequired  = errors.New("mnemonic is required")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// Keypair is a transaction signer. Mnemonic is empty for keys imported as raw bytes.
type Keypair struct {
	Address  address.Address
	Private  ed25519.PrivateKey
	Mnemonic string
}

func (k *Keypair) Public() ed25519.PublicKey {
	return k.Private.Public().(ed25519.PublicKey)
}

// Generate creates a 24-word mnemonic and the signer derived from it.
func Generate() (*Keypair, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic always maps the same mnemonic to the same signer.
func FromMnemonic(mnemonic string) (*Keypair, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	signingSeed, err := hkdfExpand(bip39.NewSeed(mnemonic, ""), hkdfInfoSigner, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	kp, err := fromPrivateKey(ed25519.NewKeyFromSeed(signingSeed))
	if err != nil {
		return nil, err
	}
	kp.Mnemonic = mnemonic
	return kp, nil
}

func fromPrivateKey(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPrivateKey, len(priv))
	}
	derived := ed25519.NewKeyFromSeed(priv.Seed())
	if !derived.Equal(priv) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
	}
	addr, err := address.FromPublicKey(derived.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Keypair{Address: addr, Private: derived}, nil
}

// EncodePrivateKey renders the 64-byte secret key in base58, the form wallets import.
func EncodePrivateKey(priv ed25519.PrivateKey) string {
	return base58.Encode(priv)
}

// DecodePrivateKey accepts a base58 secret key or a JSON byte array keypair file body.
func DecodePrivateKey(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte value %d", ErrInvalidPrivateKey, v)
			}
			raw = append(raw, byte(v))
		}
		return fromPrivateKey(raw)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return fromPrivateKey(raw)
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
