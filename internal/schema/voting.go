package schema

const (
	MaxDescriptionLen   = 280
	MaxCandidateNameLen = 280
)

var (
	PollDiscriminator      = DiscriminatorFor("Poll")
	CandidateDiscriminator = DiscriminatorFor("Candidate")
)

type Poll struct {
	PollID          uint64
	Description     string
	PollStart       uint64
	PollEnd         uint64
	CandidateAmount uint64
}

func PollSpace() int {
	return DiscriminatorSize + u64Size + BoundedStringSpace(MaxDescriptionLen) + 3*u64Size
}

func (p Poll) Validate() error {
	return CheckBounded("description", p.Description, MaxDescriptionLen)
}

func (p Poll) EncodedSize() int {
	return DiscriminatorSize + u64Size + stringPrefixSize + len(p.Description) + 3*u64Size
}

func (p Poll) MarshalSlot(dst []byte) error {
	e := newEncoder(dst)
	e.discriminator(PollDiscriminator)
	e.u64(p.PollID)
	e.boundedString("description", p.Description, MaxDescriptionLen)
	e.u64(p.PollStart)
	e.u64(p.PollEnd)
	e.u64(p.CandidateAmount)
	return e.finish()
}

func UnmarshalPoll(data []byte) (Poll, error) {
	d := newDecoder(data, PollDiscriminator)
	var p Poll
	p.PollID = d.u64()
	p.Description = d.boundedString("description", MaxDescriptionLen)
	p.PollStart = d.u64()
	p.PollEnd = d.u64()
	p.CandidateAmount = d.u64()
	if d.err != nil {
		return Poll{}, d.err
	}
	return p, nil
}

type Candidate struct {
	CandidateName  string
	CandidateVotes uint64
}

func CandidateSpace() int {
	return DiscriminatorSize + BoundedStringSpace(MaxCandidateNameLen) + u64Size
}

func (c Candidate) Validate() error {
	return CheckBounded("candidate_name", c.CandidateName, MaxCandidateNameLen)
}

func (c Candidate) EncodedSize() int {
	return DiscriminatorSize + stringPrefixSize + len(c.CandidateName) + u64Size
}

func (c Candidate) MarshalSlot(dst []byte) error {
	e := newEncoder(dst)
	e.discriminator(CandidateDiscriminator)
	e.boundedString("candidate_name", c.CandidateName, MaxCandidateNameLen)
	e.u64(c.CandidateVotes)
	return e.finish()
}

func UnmarshalCandidate(data []byte) (Candidate, error) {
	d := newDecoder(data, CandidateDiscriminator)
	var c Candidate
	c.CandidateName = d.boundedString("candidate_name", MaxCandidateNameLen)
	c.CandidateVotes = d.u64()
	if d.err != nil {
		return Candidate{}, d.err
	}
	return c, nil
}
