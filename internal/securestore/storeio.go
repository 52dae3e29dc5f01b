package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ReadJSON loads a JSON document that may be sealed. An empty secret only accepts
// plaintext; a non-empty secret accepts both so existing plaintext files can be
// upgraded on the next write.
func ReadJSON(path, secret string, purpose Purpose, v any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	payload := raw
	if IsSealed(raw) {
		if strings.TrimSpace(secret) == "" {
			return false, ErrAuthFailed
		}
		payload, err = Open(secret, purpose, raw)
		if err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, err
	}
	return true, nil
}

// WriteJSON marshals v, seals it when secret is set and replaces path atomically.
func WriteJSON(path, secret string, purpose Purpose, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if strings.TrimSpace(secret) != "" {
		payload, err = Seal(secret, purpose, payload)
		if err != nil {
			return err
		}
	}
	return WriteFileAtomic(path, payload)
}

func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
