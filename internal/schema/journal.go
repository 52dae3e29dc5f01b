package schema

import "seedslot/go-backend/internal/address"

const (
	MaxTitleLen   = 50
	MaxMessageLen = 1000
)

var JournalEntryDiscriminator = DiscriminatorFor("JournalEntryState")

type JournalEntry struct {
	Owner   address.Address
	Title   string
	Message string
}

// JournalEntrySpace is the allocation for a journal slot with every bounded field at max.
func JournalEntrySpace() int {
	return DiscriminatorSize + address.Size + BoundedStringSpace(MaxTitleLen) + BoundedStringSpace(MaxMessageLen)
}

func (j JournalEntry) Validate() error {
	if err := CheckBounded("title", j.Title, MaxTitleLen); err != nil {
		return err
	}
	return CheckBounded("message", j.Message, MaxMessageLen)
}

// EncodedSize is the exact number of bytes the entry needs, header included.
func (j JournalEntry) EncodedSize() int {
	return DiscriminatorSize + address.Size + stringPrefixSize + len(j.Title) + stringPrefixSize + len(j.Message)
}

func (j JournalEntry) MarshalSlot(dst []byte) error {
	e := newEncoder(dst)
	e.discriminator(JournalEntryDiscriminator)
	e.address(j.Owner)
	e.boundedString("title", j.Title, MaxTitleLen)
	e.boundedString("message", j.Message, MaxMessageLen)
	return e.finish()
}

func UnmarshalJournalEntry(data []byte) (JournalEntry, error) {
	d := newDecoder(data, JournalEntryDiscriminator)
	out := JournalEntry{
		Owner: d.address(),
		Title: d.boundedString("title", MaxTitleLen),
	}
	out.Message = d.boundedString("message", MaxMessageLen)
	if d.err != nil {
		return JournalEntry{}, d.err
	}
	return out, nil
}
