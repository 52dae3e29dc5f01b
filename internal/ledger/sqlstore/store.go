package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrUnsupportedDriver = errors.New("unsupported sql driver")

// AccountRecord is one ledger account row. Lamports are kept as decimal text
// because bigint columns stop at MaxInt64.
type AccountRecord struct {
	Address   string `gorm:"column:address;primaryKey;size:64"`
	Owner     string `gorm:"column:owner;size:64;not null;index:idx_ledger_accounts_owner"`
	Lamports  string `gorm:"column:lamports;size:20;not null"`
	Data      []byte `gorm:"column:data"`
	UpdatedAt time.Time
}

func (AccountRecord) TableName() string {
	return "ledger_accounts"
}

// Store persists ledger accounts through gorm; only changed rows are written per commit.
type Store struct {
	db *gorm.DB
}

func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&AccountRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger accounts: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load() (map[address.Address]ledger.Account, error) {
	var rows []AccountRecord
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[address.Address]ledger.Account, len(rows))
	for _, row := range rows {
		addr, err := address.Parse(row.Address)
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", row.Address, err)
		}
		owner := ledger.SystemProgram
		if row.Owner != "" {
			owner, err = address.Parse(row.Owner)
			if err != nil {
				return nil, fmt.Errorf("row %q owner: %w", row.Address, err)
			}
		}
		lamports, err := strconv.ParseUint(row.Lamports, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %q lamports: %w", row.Address, err)
		}
		out[addr] = ledger.Account{
			Owner:    owner,
			Lamports: lamports,
			Data:     append([]byte(nil), row.Data...),
		}
	}
	return out, nil
}

func (s *Store) Apply(_ map[address.Address]ledger.Account, changes []ledger.Change) error {
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			if c.Account == nil {
				if err := tx.Delete(&AccountRecord{}, "address = ?", c.Address.String()).Error; err != nil {
					return err
				}
				continue
			}
			row := AccountRecord{
				Address:   c.Address.String(),
				Owner:     ownerString(c.Account.Owner),
				Lamports:  strconv.FormatUint(c.Account.Lamports, 10),
				Data:      c.Account.Data,
				UpdatedAt: now,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ownerString(owner address.Address) string {
	if owner == ledger.SystemProgram {
		return ""
	}
	return owner.String()
}
