package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seedslot/go-backend/internal/adapters/rpc"
	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/keys"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/platform/ratelimiter"
	"seedslot/go-backend/internal/program"

	"github.com/cenkalti/backoff/v4"
)

// Submitter runs a signed transaction. *ledger.Ledger submits in process and
// *RPCClient submits over JSON-RPC.
type Submitter interface {
	Submit(ctx context.Context, stx ledger.SignedTransaction) (ledger.Receipt, error)
}

type Options struct {
	Submitter Submitter
	Journal   *program.JournalProgram
	Voting    *program.VotingProgram

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Limiter throttles submissions per signer before they leave the process.
	Limiter *ratelimiter.MapLimiter
	// OnRetry runs before each resubmission, e.g. metrics.Recorder.RecordRetryAttempt.
	OnRetry func(attempt int, err error)
	Logger  *slog.Logger
}

// Client builds, signs and submits the six lifecycle instructions. Conflicts and
// rate limiting are retried with exponential backoff; everything else fails fast.
type Client struct {
	submitter Submitter
	journal   *program.JournalProgram
	voting    *program.VotingProgram

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	limiter         *ratelimiter.MapLimiter
	onRetry         func(int, error)
	logger          *slog.Logger
}

func New(opts Options) (*Client, error) {
	if opts.Submitter == nil {
		return nil, errors.New("client: submitter is required")
	}
	if opts.Journal == nil {
		opts.Journal = program.NewJournalProgram(program.DefaultJournalProgramID)
	}
	if opts.Voting == nil {
		opts.Voting = program.NewVotingProgram(program.DefaultVotingProgramID)
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 50 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		submitter:       opts.Submitter,
		journal:         opts.Journal,
		voting:          opts.Voting,
		maxRetries:      opts.MaxRetries,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		limiter:         opts.Limiter,
		onRetry:         opts.OnRetry,
		logger:          opts.Logger,
	}, nil
}

func (c *Client) Journal() *program.JournalProgram { return c.journal }
func (c *Client) Voting() *program.VotingProgram   { return c.voting }

func (c *Client) CreateJournalEntry(ctx context.Context, kp *keys.Keypair, title, message string) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.journal.CreateJournalEntryInstruction(signer, title, message)
	})
}

func (c *Client) UpdateJournalEntry(ctx context.Context, kp *keys.Keypair, title, message string) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.journal.UpdateJournalEntryInstruction(signer, title, message)
	})
}

func (c *Client) DeleteJournalEntry(ctx context.Context, kp *keys.Keypair, title string) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.journal.DeleteJournalEntryInstruction(signer, title)
	})
}

func (c *Client) InitializePoll(ctx context.Context, kp *keys.Keypair, args program.InitializePollArgs) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.voting.InitializePollInstruction(signer, args)
	})
}

func (c *Client) InitializeCandidate(ctx context.Context, kp *keys.Keypair, pollID uint64, name string) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.voting.InitializeCandidateInstruction(signer, pollID, name)
	})
}

func (c *Client) Vote(ctx context.Context, kp *keys.Keypair, pollID uint64, name string) (ledger.Receipt, error) {
	return c.send(ctx, kp, func(signer address.Address) (ledger.Instruction, error) {
		return c.voting.VoteInstruction(signer, pollID, name)
	})
}

// send signs ix once and resubmits the same transaction on retryable failures.
// The ledger frees the message id of a conflicted attempt, so reusing it is safe.
func (c *Client) send(ctx context.Context, kp *keys.Keypair, build func(address.Address) (ledger.Instruction, error)) (ledger.Receipt, error) {
	if kp == nil {
		return ledger.Receipt{}, errors.New("client: signer is required")
	}
	ix, err := build(kp.Address)
	if err != nil {
		return ledger.Receipt{}, err
	}
	stx, err := ledger.Sign(ledger.NewMessage(ix, kp.Address), kp.Private)
	if err != nil {
		return ledger.Receipt{}, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initialInterval
	exp.MaxInterval = c.maxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)

	attempt := 0
	operation := func() (ledger.Receipt, error) {
		if err := c.limiter.Wait(ctx, "signer:"+kp.Address.String()); err != nil {
			return ledger.Receipt{}, backoff.Permanent(err)
		}
		receipt, err := c.submitter.Submit(ctx, stx)
		if err == nil || isRetryable(err) {
			return receipt, err
		}
		return receipt, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		c.logger.Warn("transaction retry",
			"component", "client",
			"operation", ix.Name,
			"signer", kp.Address.String(),
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		if c.onRetry != nil {
			c.onRetry(attempt, err)
		}
	}
	return backoff.RetryNotifyWithData(operation, policy, notify)
}

func isRetryable(err error) bool {
	if ledger.IsRetryable(err) {
		return true
	}
	var remote *rpc.RemoteError
	return errors.As(err, &remote) && remote.Code == rpc.CodeRateLimited
}
