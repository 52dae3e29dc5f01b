package program

import (
	"strings"
	"testing"

	"seedslot/go-backend/internal/schema"
)

func (h *harness) initPoll(s signer, pollID uint64, description string) error {
	h.t.Helper()
	ix, err := h.voting.InitializePollInstruction(s.addr, InitializePollArgs{
		PollID:      pollID,
		Description: description,
		PollStart:   1_700_000_000,
		PollEnd:     1_800_000_000,
	})
	_, err = h.submit(s, ix, err)
	return err
}

func (h *harness) initCandidate(s signer, pollID uint64, name string) error {
	h.t.Helper()
	ix, err := h.voting.InitializeCandidateInstruction(s.addr, pollID, name)
	_, err = h.submit(s, ix, err)
	return err
}

func TestInitializePoll(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(10_000_000)
	if err := h.initPoll(s, 1, "What is your favorite type of peanut butter?"); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	poll, err := h.voting.FetchPoll(h.ledger, 1)
	if err != nil {
		t.Fatalf("fetch poll failed: %v", err)
	}
	if poll.PollID != 1 || poll.CandidateAmount != 0 || poll.PollStart != 1_700_000_000 || poll.PollEnd != 1_800_000_000 {
		t.Fatalf("unexpected poll %+v", poll)
	}
	expectKind(t, h.initPoll(s, 1, "again"), ErrAlreadyInitialized)
}

func TestCandidateRegistrationBumpsPoll(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(10_000_000)
	if err := h.initPoll(s, 1, "poll"); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if err := h.initCandidate(s, 1, "Alice"); err != nil {
		t.Fatalf("initialize candidate failed: %v", err)
	}
	poll, err := h.voting.FetchPoll(h.ledger, 1)
	if err != nil || poll.CandidateAmount != 1 {
		t.Fatalf("expected candidate_amount=1, got %+v %v", poll, err)
	}
	candidate, err := h.voting.FetchCandidate(h.ledger, 1, "Alice")
	if err != nil || candidate.CandidateName != "Alice" || candidate.CandidateVotes != 0 {
		t.Fatalf("unexpected candidate %+v %v", candidate, err)
	}

	expectKind(t, h.initCandidate(s, 1, "Alice"), ErrAlreadyInitialized)
	poll, _ = h.voting.FetchPoll(h.ledger, 1)
	if poll.CandidateAmount != 1 {
		t.Fatalf("failed registration must not bump the poll, got %d", poll.CandidateAmount)
	}

	if err := h.initCandidate(s, 1, "Bob"); err != nil {
		t.Fatalf("initialize second candidate failed: %v", err)
	}
	poll, _ = h.voting.FetchPoll(h.ledger, 1)
	if poll.CandidateAmount != 2 {
		t.Fatalf("expected candidate_amount=2, got %d", poll.CandidateAmount)
	}
}

func TestCandidateRequiresPoll(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(10_000_000)
	expectKind(t, h.initCandidate(s, 9, "Alice"), ErrNotInitialized)
	if _, err := h.voting.FetchCandidate(h.ledger, 9, "Alice"); err == nil {
		t.Fatal("candidate must not exist without its poll")
	}
}

func TestCandidateAddressScopedToPoll(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(100_000_000)
	for _, id := range []uint64{1, 2} {
		if err := h.initPoll(s, id, "poll"); err != nil {
			t.Fatalf("initialize poll failed: %v", err)
		}
	}
	ix, err := h.voting.InitializeCandidateInstruction(s.addr, 2, "Alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	other, _, err := CandidateAddress(h.voting.ID(), 1, "Alice")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	ix.Accounts[AccountCandidate] = other
	_, err = h.submit(s, ix, nil)
	expectKind(t, err, ErrAddressMismatch)

	if err := h.initCandidate(s, 1, "Alice"); err != nil {
		t.Fatalf("initialize candidate failed: %v", err)
	}
	if err := h.initCandidate(s, 2, "Alice"); err != nil {
		t.Fatalf("same name in another poll must succeed: %v", err)
	}
	if got := len(h.voting.ListCandidates(h.ledger, 1)); got != 1 {
		t.Fatalf("expected 1 candidate in poll 1, got %d", got)
	}
	if got := len(h.voting.ListPolls(h.ledger)); got != 2 {
		t.Fatalf("expected 2 polls, got %d", got)
	}
}

func TestVoteAccumulates(t *testing.T) {
	h := newHarness(t)
	creator := h.newSigner(10_000_000)
	if err := h.initPoll(creator, 1, "poll"); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	if err := h.initCandidate(creator, 1, "Alice"); err != nil {
		t.Fatalf("initialize candidate failed: %v", err)
	}

	var lastLogs []string
	for i := 0; i < 3; i++ {
		voter := h.newSigner(1)
		ix, err := h.voting.VoteInstruction(voter.addr, 1, "Alice")
		lastLogs = h.mustSubmit(voter, ix, err).Logs
	}
	candidate, err := h.voting.FetchCandidate(h.ledger, 1, "Alice")
	if err != nil || candidate.CandidateVotes != 3 {
		t.Fatalf("expected 3 votes, got %+v %v", candidate, err)
	}
	if len(lastLogs) != 2 || lastLogs[0] != "Voted for Alice" || lastLogs[1] != "Current votes: 3" {
		t.Fatalf("unexpected vote logs %v", lastLogs)
	}

	// Repeat votes from one signer are counted.
	ix, err := h.voting.VoteInstruction(creator.addr, 1, "Alice")
	h.mustSubmit(creator, ix, err)
	candidate, _ = h.voting.FetchCandidate(h.ledger, 1, "Alice")
	if candidate.CandidateVotes != 4 {
		t.Fatalf("expected 4 votes, got %d", candidate.CandidateVotes)
	}
}

func TestVoteRequiresCandidate(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(10_000_000)
	if err := h.initPoll(s, 1, "poll"); err != nil {
		t.Fatalf("initialize poll failed: %v", err)
	}
	ix, err := h.voting.VoteInstruction(s.addr, 1, "Nobody")
	_, err = h.submit(s, ix, err)
	expectKind(t, err, ErrNotInitialized)
}

func TestVotingFieldBoundaries(t *testing.T) {
	h := newHarness(t)
	s := h.newSigner(100_000_000)

	if err := h.initPoll(s, 1, strings.Repeat("d", schema.MaxDescriptionLen)); err != nil {
		t.Fatalf("description at max failed: %v", err)
	}
	expectKind(t, h.initPoll(s, 2, strings.Repeat("d", schema.MaxDescriptionLen+1)), ErrSizeExceeded)

	atMax := strings.Repeat("c", schema.MaxCandidateNameLen)
	if err := h.initCandidate(s, 1, atMax); err != nil {
		t.Fatalf("candidate name at max failed: %v", err)
	}
	expectKind(t, h.initCandidate(s, 1, atMax+"c"), ErrSizeExceeded)

	ix, err := h.voting.VoteInstruction(s.addr, 1, atMax)
	h.mustSubmit(s, ix, err)
	poll, _ := h.voting.FetchPoll(h.ledger, 1)
	if poll.CandidateAmount != 1 {
		t.Fatalf("oversized candidate must not bump the poll, got %d", poll.CandidateAmount)
	}
}
