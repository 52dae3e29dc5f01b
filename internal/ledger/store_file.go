package ledger

import (
	"strings"
	"sync"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/securestore"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int                         `json:"version"`
	Accounts map[address.Address]Account `json:"accounts"`
}

// FileStore keeps the whole ledger in one JSON snapshot, sealed when a passphrase
// is configured.
type FileStore struct {
	mu     sync.Mutex
	path   string
	secret string
}

func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{
		path:   strings.TrimSpace(path),
		secret: strings.TrimSpace(passphrase),
	}
}

func (s *FileStore) Load() (map[address.Address]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap snapshot
	ok, err := securestore.ReadJSON(s.path, s.secret, securestore.PurposeLedgerSnapshot, &snap)
	if err != nil || !ok {
		return nil, err
	}
	if snap.Accounts == nil {
		return nil, nil
	}
	return snap.Accounts, nil
}

func (s *FileStore) Apply(next map[address.Address]Account, _ []Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return securestore.WriteJSON(s.path, s.secret, securestore.PurposeLedgerSnapshot, snapshot{
		Version:  snapshotVersion,
		Accounts: next,
	})
}

func (s *FileStore) Close() error {
	return nil
}
