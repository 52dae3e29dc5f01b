package program

import (
	"fmt"
	"math"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/schema"

	"github.com/samber/lo"
)

const (
	InstructionInitializePoll      = "initialize_poll"
	InstructionInitializeCandidate = "initialize_candidate"
	InstructionVote                = "vote"
)

type InitializePollArgs struct {
	PollID      uint64 `json:"poll_id"`
	Description string `json:"description"`
	PollStart   uint64 `json:"poll_start"`
	PollEnd     uint64 `json:"poll_end"`
}

// CandidateArgs is shared by initialize_candidate and vote.
type CandidateArgs struct {
	CandidateName string `json:"candidate_name"`
	PollID        uint64 `json:"poll_id"`
}

// VotingProgram hosts polls and their candidates. Votes are not tied to voters and the
// poll window is stored but not enforced.
type VotingProgram struct {
	id address.Address
}

func NewVotingProgram(id address.Address) *VotingProgram {
	if id.IsZero() {
		id = DefaultVotingProgramID
	}
	return &VotingProgram{id: id}
}

func (p *VotingProgram) ID() address.Address { return p.id }
func (p *VotingProgram) Name() string        { return "voting" }

func pollSeeds(pollID uint64) [][]byte {
	return [][]byte{address.U64LE(pollID)}
}

func candidateSeeds(pollID uint64, name string) [][]byte {
	return [][]byte{address.U64LE(pollID), []byte(name)}
}

func PollAddress(program address.Address, pollID uint64) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress(program, pollSeeds(pollID))
	return addr, bump, hostError(err)
}

func CandidateAddress(program address.Address, pollID uint64, name string) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress(program, candidateSeeds(pollID, name))
	return addr, bump, hostError(err)
}

func (p *VotingProgram) Process(tx *ledger.Tx, ix ledger.Instruction) error {
	return p.process(tx, ix)
}

func (p *VotingProgram) process(h Host, ix ledger.Instruction) error {
	signer, err := requireAccount(ix, AccountSigner)
	if err != nil {
		return err
	}
	pollAddr, err := requireAccount(ix, AccountPoll)
	if err != nil {
		return err
	}
	switch ix.Name {
	case InstructionInitializePoll:
		var args InitializePollArgs
		if err := decodeArgs(ix.Args, &args); err != nil {
			return err
		}
		return p.initializePoll(h, pollAddr, signer, args)
	case InstructionInitializeCandidate, InstructionVote:
		candidateAddr, err := requireAccount(ix, AccountCandidate)
		if err != nil {
			return err
		}
		var args CandidateArgs
		if err := decodeArgs(ix.Args, &args); err != nil {
			return err
		}
		if ix.Name == InstructionVote {
			return p.vote(h, pollAddr, candidateAddr, signer, args)
		}
		return p.initializeCandidate(h, pollAddr, candidateAddr, signer, args)
	default:
		return invalidArgument("unknown voting instruction %q", ix.Name)
	}
}

func (p *VotingProgram) initializePoll(h Host, pollAddr, signer address.Address, args InitializePollArgs) error {
	poll := schema.Poll{
		PollID:      args.PollID,
		Description: args.Description,
		PollStart:   args.PollStart,
		PollEnd:     args.PollEnd,
	}
	if err := poll.Validate(); err != nil {
		return hostError(err)
	}
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, pollAddr, pollSeeds(args.PollID)...); err != nil {
		return err
	}
	if err := ValidateCreate(h, pollAddr, signer, schema.PollSpace()); err != nil {
		return err
	}
	return writeRecord(h, pollAddr, poll.MarshalSlot)
}

// initializeCandidate creates the candidate and bumps the poll's candidate counter in the
// same transaction.
func (p *VotingProgram) initializeCandidate(h Host, pollAddr, candidateAddr, signer address.Address, args CandidateArgs) error {
	candidate := schema.Candidate{CandidateName: args.CandidateName}
	if err := candidate.Validate(); err != nil {
		return hostError(err)
	}
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, pollAddr, pollSeeds(args.PollID)...); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, candidateAddr, candidateSeeds(args.PollID, args.CandidateName)...); err != nil {
		return err
	}
	poll, err := p.loadPoll(h, pollAddr)
	if err != nil {
		return err
	}
	if err := ValidateCreate(h, candidateAddr, signer, schema.CandidateSpace()); err != nil {
		return err
	}
	if err := writeRecord(h, candidateAddr, candidate.MarshalSlot); err != nil {
		return err
	}
	if poll.CandidateAmount, err = increment(poll.CandidateAmount, "candidate_amount"); err != nil {
		return err
	}
	return writeRecord(h, pollAddr, poll.MarshalSlot)
}

// vote adds one vote. Any signer may vote any number of times.
func (p *VotingProgram) vote(h Host, pollAddr, candidateAddr, signer address.Address, args CandidateArgs) error {
	if err := schema.CheckBounded("candidate_name", args.CandidateName, schema.MaxCandidateNameLen); err != nil {
		return hostError(err)
	}
	if err := RequireSigner(h, signer); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, pollAddr, pollSeeds(args.PollID)...); err != nil {
		return err
	}
	if _, err := ExpectAddress(p.id, candidateAddr, candidateSeeds(args.PollID, args.CandidateName)...); err != nil {
		return err
	}
	if _, err := p.loadPoll(h, pollAddr); err != nil {
		return err
	}
	data, err := ValidateExisting(h, candidateAddr, schema.CandidateDiscriminator)
	if err != nil {
		return err
	}
	candidate, err := schema.UnmarshalCandidate(data)
	if err != nil {
		return hostError(err)
	}
	if candidate.CandidateVotes, err = increment(candidate.CandidateVotes, "candidate_votes"); err != nil {
		return err
	}
	if err := writeRecord(h, candidateAddr, candidate.MarshalSlot); err != nil {
		return err
	}
	h.Logf("Voted for %s", candidate.CandidateName)
	h.Logf("Current votes: %d", candidate.CandidateVotes)
	return nil
}

func (p *VotingProgram) loadPoll(h Host, pollAddr address.Address) (schema.Poll, error) {
	data, err := ValidateExisting(h, pollAddr, schema.PollDiscriminator)
	if err != nil {
		return schema.Poll{}, err
	}
	poll, err := schema.UnmarshalPoll(data)
	if err != nil {
		return schema.Poll{}, hostError(err)
	}
	return poll, nil
}

func increment(v uint64, field string) (uint64, error) {
	if v == math.MaxUint64 {
		return v, fmt.Errorf("%w: %s", ErrCounterOverflow, field)
	}
	return v + 1, nil
}

func (p *VotingProgram) InitializePollInstruction(signer address.Address, args InitializePollArgs) (ledger.Instruction, error) {
	pollAddr, _, err := PollAddress(p.id, args.PollID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return buildInstruction(p.id, InstructionInitializePoll, map[string]address.Address{
		AccountPoll:   pollAddr,
		AccountSigner: signer,
	}, args)
}

func (p *VotingProgram) InitializeCandidateInstruction(signer address.Address, pollID uint64, name string) (ledger.Instruction, error) {
	return p.candidateInstruction(InstructionInitializeCandidate, signer, pollID, name)
}

func (p *VotingProgram) VoteInstruction(signer address.Address, pollID uint64, name string) (ledger.Instruction, error) {
	return p.candidateInstruction(InstructionVote, signer, pollID, name)
}

func (p *VotingProgram) candidateInstruction(name string, signer address.Address, pollID uint64, candidateName string) (ledger.Instruction, error) {
	pollAddr, _, err := PollAddress(p.id, pollID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	candidateAddr, _, err := CandidateAddress(p.id, pollID, candidateName)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return buildInstruction(p.id, name, map[string]address.Address{
		AccountPoll:      pollAddr,
		AccountCandidate: candidateAddr,
		AccountSigner:    signer,
	}, CandidateArgs{CandidateName: candidateName, PollID: pollID})
}

func (p *VotingProgram) FetchPoll(r AccountReader, pollID uint64) (schema.Poll, error) {
	pollAddr, _, err := PollAddress(p.id, pollID)
	if err != nil {
		return schema.Poll{}, err
	}
	data, err := fetchValidated(r, p.id, pollAddr, schema.PollDiscriminator[:])
	if err != nil {
		return schema.Poll{}, err
	}
	poll, err := schema.UnmarshalPoll(data)
	return poll, hostError(err)
}

func (p *VotingProgram) FetchCandidate(r AccountReader, pollID uint64, name string) (schema.Candidate, error) {
	candidateAddr, _, err := CandidateAddress(p.id, pollID, name)
	if err != nil {
		return schema.Candidate{}, err
	}
	data, err := fetchValidated(r, p.id, candidateAddr, schema.CandidateDiscriminator[:])
	if err != nil {
		return schema.Candidate{}, err
	}
	candidate, err := schema.UnmarshalCandidate(data)
	return candidate, hostError(err)
}

func (p *VotingProgram) ListPolls(r AccountReader) []schema.Poll {
	return lo.FilterMap(r.ListAccounts(p.id, schema.PollDiscriminator[:]), func(item ledger.KeyedAccount, _ int) (schema.Poll, bool) {
		poll, err := schema.UnmarshalPoll(item.Account.Data)
		return poll, err == nil
	})
}

// ListCandidates returns the candidates of one poll. Candidates do not store their poll,
// so membership is decided by re-deriving each candidate's address.
func (p *VotingProgram) ListCandidates(r AccountReader, pollID uint64) []schema.Candidate {
	return lo.FilterMap(r.ListAccounts(p.id, schema.CandidateDiscriminator[:]), func(item ledger.KeyedAccount, _ int) (schema.Candidate, bool) {
		candidate, err := schema.UnmarshalCandidate(item.Account.Data)
		if err != nil {
			return schema.Candidate{}, false
		}
		want, _, err := CandidateAddress(p.id, pollID, candidate.CandidateName)
		return candidate, err == nil && want == item.Address
	})
}
