package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"seedslot/go-backend/internal/adapters/rpc"
	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/keys"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/program"
)

type scriptedSubmitter struct {
	mu    sync.Mutex
	errs  []error
	calls int
	ids   []string
}

func (s *scriptedSubmitter) Submit(_ context.Context, stx ledger.SignedTransaction) (ledger.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := ledger.Verify(stx)
	if err != nil {
		return ledger.Receipt{}, err
	}
	s.ids = append(s.ids, msg.ID)
	s.calls++
	if len(s.errs) > 0 {
		next := s.errs[0]
		s.errs = s.errs[1:]
		if next != nil {
			return ledger.Receipt{TxID: msg.ID, Status: ledger.StatusFailed}, next
		}
	}
	return ledger.Receipt{TxID: msg.ID, Status: ledger.StatusOK}, nil
}

func newKeypair(t *testing.T) *keys.Keypair {
	t.Helper()
	kp, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate keypair failed: %v", err)
	}
	return kp
}

func newLedger(t *testing.T) (*ledger.Ledger, *program.JournalProgram, *program.VotingProgram) {
	t.Helper()
	l, err := ledger.New(ledger.Options{})
	if err != nil {
		t.Fatalf("new ledger failed: %v", err)
	}
	journal := program.NewJournalProgram(address.Zero)
	voting := program.NewVotingProgram(address.Zero)
	l.Register(journal)
	l.Register(voting)
	return l, journal, voting
}

func fastOptions(sub Submitter) Options {
	return Options{
		Submitter:       sub,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestClientRetriesConflictsWithSameTransaction(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{ledger.ErrConflict, ledger.ErrConflict}}
	var retries []int
	opts := fastOptions(sub)
	opts.OnRetry = func(attempt int, err error) {
		if !errors.Is(err, ledger.ErrConflict) {
			t.Errorf("unexpected retry cause: %v", err)
		}
		retries = append(retries, attempt)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	receipt, err := c.Vote(context.Background(), newKeypair(t), 1, "tacos")
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if sub.calls != 3 || len(retries) != 2 || retries[1] != 2 {
		t.Fatalf("expected 3 calls and 2 retries, got %d calls, retries %v", sub.calls, retries)
	}
	if sub.ids[0] != sub.ids[2] || receipt.TxID != sub.ids[0] {
		t.Fatalf("retries must resubmit the same message id, got %v", sub.ids)
	}
}

func TestClientDoesNotRetryProgramErrors(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{program.ErrUnauthorized}}
	c, err := New(fastOptions(sub))
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	receipt, err := c.DeleteJournalEntry(context.Background(), newKeypair(t), "Day1")
	if !errors.Is(err, program.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if sub.calls != 1 || receipt.Status != ledger.StatusFailed {
		t.Fatalf("expected one failed call, got %d calls, receipt %+v", sub.calls, receipt)
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	sub := &scriptedSubmitter{errs: []error{ledger.ErrConflict, ledger.ErrConflict, ledger.ErrConflict, ledger.ErrConflict}}
	opts := fastOptions(sub)
	opts.MaxRetries = 2
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = c.InitializeCandidate(context.Background(), newKeypair(t), 1, "tacos")
	if !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected conflict after retries, got %v", err)
	}
	if sub.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", sub.calls)
	}
}

func TestClientRejectsInvalidInstructionBeforeSubmitting(t *testing.T) {
	sub := &scriptedSubmitter{}
	c, err := New(fastOptions(sub))
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if _, err := c.CreateJournalEntry(context.Background(), newKeypair(t), strings.Repeat("t", 600), "hello"); err == nil {
		t.Fatal("expected an underivable title to fail")
	}
	if sub.calls != 0 {
		t.Fatalf("nothing should be submitted, got %d calls", sub.calls)
	}
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected missing submitter to fail")
	}
}

func TestClientLifecycleInProcess(t *testing.T) {
	l, journal, voting := newLedger(t)
	opts := fastOptions(l)
	opts.Journal, opts.Voting = journal, voting
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	ctx := context.Background()
	alice := newKeypair(t)
	if err := l.Airdrop(ctx, alice.Address, 1_000_000_000); err != nil {
		t.Fatalf("airdrop failed: %v", err)
	}

	if _, err := c.CreateJournalEntry(ctx, alice, "Day1", "hello"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := c.UpdateJournalEntry(ctx, alice, "Day1", "hello again"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	addr, _, err := program.JournalEntryAddress(journal.ID(), "Day1", alice.Address)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	entry, err := journal.FetchJournalEntry(l, addr)
	if err != nil || entry.Message != "hello again" {
		t.Fatalf("unexpected entry %+v, err %v", entry, err)
	}
	if _, err := c.DeleteJournalEntry(ctx, alice, "Day1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := l.GetAccount(addr); ok {
		t.Fatal("entry slot should be gone after delete")
	}

	if _, err := c.InitializePoll(ctx, alice, program.InitializePollArgs{PollID: 3, Description: "lunch"}); err != nil {
		t.Fatalf("init poll failed: %v", err)
	}
	if _, err := c.InitializeCandidate(ctx, alice, 3, "tacos"); err != nil {
		t.Fatalf("init candidate failed: %v", err)
	}
	receipt, err := c.Vote(ctx, alice, 3, "tacos")
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	if len(receipt.Logs) != 2 || receipt.Logs[1] != "Current votes: 1" {
		t.Fatalf("unexpected vote logs %v", receipt.Logs)
	}
}

func TestClientOverRPC(t *testing.T) {
	l, journal, voting := newLedger(t)
	srv, err := rpc.NewServer(rpc.Options{Ledger: l, Journal: journal, Voting: voting, Token: "t0k"})
	if err != nil {
		t.Fatalf("new rpc server failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	remote := NewRPCClient(ts.URL, "t0k")
	ctx := context.Background()
	alice := newKeypair(t)
	bal, err := remote.Airdrop(ctx, alice.Address, 1_000_000_000)
	if err != nil || bal.Lamports != 1_000_000_000 {
		t.Fatalf("airdrop failed: %+v, %v", bal, err)
	}

	opts := fastOptions(remote)
	opts.Journal, opts.Voting = journal, voting
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	receipt, err := c.CreateJournalEntry(ctx, alice, "Day1", "hello")
	if err != nil || receipt.Status != ledger.StatusOK {
		t.Fatalf("create over rpc failed: %+v, %v", receipt, err)
	}

	entry, err := remote.FetchJournalEntry(ctx, alice.Address, "Day1")
	if err != nil || entry.Message != "hello" {
		t.Fatalf("fetch over rpc failed: %+v, %v", entry, err)
	}

	receipt, err = c.CreateJournalEntry(ctx, alice, "Day1", "again")
	if !errors.Is(err, program.ErrAlreadyInitialized) {
		t.Fatalf("expected AlreadyInitialized across the wire, got %v", err)
	}
	if receipt.TxID == "" || receipt.Status != ledger.StatusFailed {
		t.Fatalf("expected failed receipt with tx id, got %+v", receipt)
	}

	if _, err := NewRPCClient(ts.URL, "wrong").Health(ctx); err == nil {
		t.Fatal("expected wrong token to be rejected")
	}
}

func TestNewRPCClientNormalizesEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                       "http://" + rpc.DefaultRPCAddr + "/rpc",
		"127.0.0.1:9000":         "http://127.0.0.1:9000/rpc",
		"https://node.example/":  "https://node.example/rpc",
		"http://127.0.0.1:1/rpc": "http://127.0.0.1:1/rpc",
	}
	for in, want := range cases {
		if got := NewRPCClient(in, "").endpoint; got != want {
			t.Fatalf("endpoint for %q: want %q, got %q", in, want, got)
		}
	}
}

func TestClientConcurrentCandidatesAndVotesKeepCounts(t *testing.T) {
	const (
		candidates = 8
		voters     = 40
	)
	l, journal, voting := newLedger(t)
	opts := fastOptions(l)
	opts.Journal, opts.Voting = journal, voting
	opts.MaxRetries = 500
	opts.MaxInterval = 5 * time.Millisecond
	c, err := New(opts)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	ctx := context.Background()

	creator := newKeypair(t)
	if err := l.Airdrop(ctx, creator.Address, 1_000_000_000); err != nil {
		t.Fatalf("airdrop failed: %v", err)
	}
	if _, err := c.InitializePoll(ctx, creator, program.InitializePollArgs{PollID: 7, Description: "concurrent"}); err != nil {
		t.Fatalf("init poll failed: %v", err)
	}
	if _, err := c.InitializeCandidate(ctx, creator, 7, "base"); err != nil {
		t.Fatalf("init base candidate failed: %v", err)
	}

	signers := make([]*keys.Keypair, candidates+voters)
	for i := range signers {
		signers[i] = newKeypair(t)
		if err := l.Airdrop(ctx, signers[i].Address, 100_000_000); err != nil {
			t.Fatalf("airdrop failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(signers))
	for i, kp := range signers {
		wg.Add(1)
		go func(i int, kp *keys.Keypair) {
			defer wg.Done()
			var err error
			if i < candidates {
				_, err = c.InitializeCandidate(ctx, kp, 7, "candidate-"+string(rune('a'+i)))
			} else {
				_, err = c.Vote(ctx, kp, 7, "base")
			}
			if err != nil {
				errs <- err
			}
		}(i, kp)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent submit failed: %v", err)
	}

	poll, err := voting.FetchPoll(l, 7)
	if err != nil {
		t.Fatalf("fetch poll failed: %v", err)
	}
	if poll.CandidateAmount != candidates+1 {
		t.Fatalf("expected candidate_amount=%d, got %d", candidates+1, poll.CandidateAmount)
	}
	base, err := voting.FetchCandidate(l, 7, "base")
	if err != nil {
		t.Fatalf("fetch candidate failed: %v", err)
	}
	if base.CandidateVotes != voters {
		t.Fatalf("expected candidate_votes=%d, got %d", voters, base.CandidateVotes)
	}
	if got := len(voting.ListCandidates(l, 7)); got != candidates+1 {
		t.Fatalf("expected %d candidates, got %d", candidates+1, got)
	}
}
