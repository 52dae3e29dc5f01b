package models

import (
	"strings"
	"time"
)

type Account struct {
	Address  string `json:"address"`
	Owner    string `json:"owner"`
	Lamports uint64 `json:"lamports"`
	Space    int    `json:"space"`
	Data     []byte `json:"data,omitempty"`
}

type JournalEntry struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Poll struct {
	Address         string `json:"address"`
	PollID          uint64 `json:"poll_id"`
	Description     string `json:"description"`
	PollStart       uint64 `json:"poll_start"`
	PollEnd         uint64 `json:"poll_end"`
	CandidateAmount uint64 `json:"candidate_amount"`
}

type Candidate struct {
	Address        string `json:"address"`
	PollID         uint64 `json:"poll_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateVotes uint64 `json:"candidate_votes"`
}

type DerivedAddress struct {
	Program string `json:"program"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

type Receipt struct {
	TxID        string    `json:"tx_id"`
	Program     string    `json:"program"`
	Instruction string    `json:"instruction"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Logs        []string  `json:"logs,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Balance struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

type Programs struct {
	Journal string `json:"journal"`
	Voting  string `json:"voting"`
}

type Health struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Storage       string    `json:"storage"`
	Programs      Programs  `json:"programs"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	CheckedAt     time.Time `json:"checked_at"`
}

type MetricsSnapshot struct {
	OperationStats     map[string]OperationMetric `json:"operation_stats"`
	ErrorCounters      map[string]int             `json:"error_counters"`
	ConflictsTotal     int                        `json:"conflicts_total"`
	RetryAttemptsTotal int                        `json:"retry_attempts_total"`
	SlotCounts         map[string]int             `json:"slot_counts"`
	LastUpdatedAt      time.Time                  `json:"last_updated_at"`
}

type OperationMetric struct {
	Count         int   `json:"count"`
	Errors        int   `json:"errors"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	MaxLatencyMs  int64 `json:"max_latency_ms"`
	LastLatencyMs int64 `json:"last_latency_ms"`
}

const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQL    = "sql"
)

func NormalizeStorageDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StorageFile:
		return StorageFile
	case StorageSQL, "sqlite", "postgres":
		return StorageSQL
	default:
		return StorageMemory
	}
}
