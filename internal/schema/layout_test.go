package schema

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"seedslot/go-backend/internal/address"
)

func TestSpaces(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"journal", JournalEntrySpace(), 8 + 32 + 4 + 50 + 4 + 1000},
		{"poll", PollSpace(), 8 + 8 + 4 + 280 + 8 + 8 + 8},
		{"candidate", CandidateSpace(), 8 + 4 + 280 + 8},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s space: expected %d, got %d", tc.name, tc.want, tc.got)
		}
	}
}

func TestJournalEntryLayout(t *testing.T) {
	owner := address.MustParse("Ck1Nt6DDLVTG4Ct76bQPMQFGoZfpici7akiAU42Ec15T")
	entry := JournalEntry{Owner: owner, Title: "Day1", Message: "hello"}
	slot := bytes.Repeat([]byte{0xAA}, JournalEntrySpace())
	if err := entry.MarshalSlot(slot); err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !HasDiscriminator(slot, JournalEntryDiscriminator) {
		t.Fatal("slot must start with the journal discriminator")
	}
	if !bytes.Equal(slot[8:40], owner[:]) {
		t.Fatal("owner must follow the discriminator")
	}
	if !bytes.Equal(slot[40:44], []byte{4, 0, 0, 0}) || string(slot[44:48]) != "Day1" {
		t.Fatal("title must be length-prefixed little-endian")
	}
	for i := entry.EncodedSize(); i < len(slot); i++ {
		if slot[i] != 0 {
			t.Fatalf("byte %d after record should be zero, got %#x", i, slot[i])
		}
	}
	got, err := UnmarshalJournalEntry(slot)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got != entry {
		t.Fatalf("expected %+v, got %+v", entry, got)
	}
}

func TestBoundedFieldLimits(t *testing.T) {
	cases := []struct {
		name   string
		encode func(n int) error
		max    int
	}{
		{"title", func(n int) error {
			return JournalEntry{Title: strings.Repeat("t", n)}.MarshalSlot(make([]byte, JournalEntrySpace()))
		}, MaxTitleLen},
		{"message", func(n int) error {
			return JournalEntry{Message: strings.Repeat("m", n)}.MarshalSlot(make([]byte, JournalEntrySpace()))
		}, MaxMessageLen},
		{"description", func(n int) error {
			return Poll{Description: strings.Repeat("d", n)}.MarshalSlot(make([]byte, PollSpace()))
		}, MaxDescriptionLen},
		{"candidate_name", func(n int) error {
			return Candidate{CandidateName: strings.Repeat("c", n)}.MarshalSlot(make([]byte, CandidateSpace()))
		}, MaxCandidateNameLen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.encode(tc.max); err != nil {
				t.Fatalf("value at max failed: %v", err)
			}
			if err := tc.encode(tc.max + 1); !errors.Is(err, ErrSizeExceeded) {
				t.Fatalf("expected ErrSizeExceeded, got %v", err)
			}
		})
	}
}

func TestMarshalIntoSmallSlot(t *testing.T) {
	entry := JournalEntry{Title: "Day1", Message: "a longer message"}
	small := make([]byte, entry.EncodedSize()-1)
	if err := entry.MarshalSlot(small); !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
	exact := make([]byte, entry.EncodedSize())
	if err := entry.MarshalSlot(exact); err != nil {
		t.Fatalf("exact-size marshal failed: %v", err)
	}
}

func TestUnmarshalRejectsForeignType(t *testing.T) {
	slot := make([]byte, CandidateSpace())
	if err := (Candidate{CandidateName: "Alice", CandidateVotes: 3}).MarshalSlot(slot); err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if _, err := UnmarshalPoll(slot); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Fatalf("expected ErrDiscriminatorMismatch, got %v", err)
	}
	got, err := UnmarshalCandidate(slot)
	if err != nil {
		t.Fatalf("unmarshal candidate failed: %v", err)
	}
	if got.CandidateName != "Alice" || got.CandidateVotes != 3 {
		t.Fatalf("unexpected candidate %+v", got)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	slot := make([]byte, PollSpace())
	if err := (Poll{PollID: 1, Description: "desc"}).MarshalSlot(slot); err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if _, err := UnmarshalPoll(slot[:20]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := UnmarshalPoll(slot[:3]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short header, got %v", err)
	}
}
