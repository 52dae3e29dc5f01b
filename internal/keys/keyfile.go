package keys

import (
	"errors"
	"fmt"
	"os"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/securestore"
)

const keyFileVersion = 1

var ErrKeyFileNotFound = errors.New("key file not found")

type keyFile struct {
	Version  int             `json:"version"`
	Address  address.Address `json:"address"`
	Mnemonic string          `json:"mnemonic,omitempty"`
	Secret   string          `json:"secret_key,omitempty"`
}

// Save writes the keypair to path, sealed under passphrase when one is given. A
// mnemonic-backed key stores only its mnemonic.
func Save(path, passphrase string, kp *Keypair) error {
	doc := keyFile{Version: keyFileVersion, Address: kp.Address}
	if kp.Mnemonic != "" {
		doc.Mnemonic = kp.Mnemonic
	} else {
		doc.Secret = EncodePrivateKey(kp.Private)
	}
	return securestore.WriteJSON(path, passphrase, securestore.PurposeSignerKey, doc)
}

func Load(path, passphrase string) (*Keypair, error) {
	var doc keyFile
	ok, err := securestore.ReadJSON(path, passphrase, securestore.PurposeSignerKey, &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyFileNotFound, path)
	}
	var kp *Keypair
	switch {
	case doc.Mnemonic != "":
		kp, err = FromMnemonic(doc.Mnemonic)
	case doc.Secret != "":
		kp, err = DecodePrivateKey(doc.Secret)
	default:
		return nil, fmt.Errorf("%w: key file holds no key material", ErrInvalidPrivateKey)
	}
	if err != nil {
		return nil, err
	}
	if !doc.Address.IsZero() && doc.Address != kp.Address {
		return nil, fmt.Errorf("%w: key file address %s does not match key", ErrInvalidPrivateKey, doc.Address)
	}
	return kp, nil
}

// Exists reports whether path holds a key file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
