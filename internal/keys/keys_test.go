package keys

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"seedslot/go-backend/internal/securestore"
	"seedslot/go-backend/internal/testutil/fsperm"
)

func TestGenerateAndRestoreFromMnemonic(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got := len(strings.Fields(kp.Mnemonic)); got != 24 {
		t.Fatalf("expected 24 words, got %d", got)
	}
	restored, err := FromMnemonic("  " + strings.ReplaceAll(kp.Mnemonic, " ", "\n ") + " ")
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Address != kp.Address {
		t.Fatal("same mnemonic must yield the same signer")
	}
	msg := []byte("hello")
	if !ed25519.Verify(kp.Public(), msg, ed25519.Sign(restored.Private, msg)) {
		t.Fatal("restored key must sign for the original address")
	}
}

func TestFromMnemonicRejectsInvalid(t *testing.T) {
	if _, err := FromMnemonic(""); !errors.Is(err, ErrMnemonicRequired) {
		t.Fatalf("expected ErrMnemonicRequired, got %v", err)
	}
	if _, err := FromMnemonic("not a mnemonic"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}

func TestPrivateKeyEncodings(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	decoded, err := DecodePrivateKey(EncodePrivateKey(kp.Private))
	if err != nil {
		t.Fatalf("decode base58 failed: %v", err)
	}
	if decoded.Address != kp.Address || decoded.Mnemonic != "" {
		t.Fatalf("unexpected decoded keypair %+v", decoded.Address)
	}

	parts := make([]string, 0, len(kp.Private))
	for _, b := range kp.Private {
		parts = append(parts, strconv.Itoa(int(b)))
	}
	fromArray, err := DecodePrivateKey("[" + strings.Join(parts, ",") + "]")
	if err != nil {
		t.Fatalf("decode json array failed: %v", err)
	}
	if fromArray.Address != kp.Address {
		t.Fatal("json array keypair must decode to the same address")
	}

	broken := append([]byte(nil), kp.Private...)
	broken[40] ^= 0xFF
	if _, err := DecodePrivateKey(EncodePrivateKey(broken)); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey for mismatched public half, got %v", err)
	}
	if _, err := DecodePrivateKey("[1,2,3]"); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey for short key, got %v", err)
	}
}

func TestKeyFileSealedRoundtrip(t *testing.T) {
	dir := t.TempDir()
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	path := filepath.Join(dir, "wallets", "signer.json")
	if err := Save(path, "pass", kp); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	fsperm.AssertPrivateFile(t, path)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !securestore.IsSealed(raw) || strings.Contains(string(raw), strings.Fields(kp.Mnemonic)[0]+" ") {
		t.Fatal("key file must be sealed")
	}
	loaded, err := Load(path, "pass")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Address != kp.Address {
		t.Fatal("loaded key does not match")
	}
	if _, err := Load(path, "wrong"); !errors.Is(err, securestore.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.json"), "pass"); !errors.Is(err, ErrKeyFileNotFound) {
		t.Fatalf("expected ErrKeyFileNotFound, got %v", err)
	}
}

func TestKeyFilePlainImportedKey(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	imported, err := DecodePrivateKey(EncodePrivateKey(kp.Private))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "imported.json")
	if err := Save(path, "", imported); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !Exists(path) {
		t.Fatal("key file should exist")
	}
	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Address != kp.Address {
		t.Fatal("loaded key does not match")
	}
}
