package msg91

import (
	"encoding/json"
	"strings"
	"unicode"
)

// RecipientSet is the group of mobile numbers a batch is addressed to. Every
// envelope of one call carries the same set.
type RecipientSet struct {
	numbers []string
	single  bool
}

// Numbers returns a copy of the numbers in the set, in caller order.
func (r RecipientSet) Numbers() []string {
	return append([]string(nil), r.numbers...)
}

// MarshalJSON encodes a set built from a single number as a bare string and
// any other set as an array.
func (r RecipientSet) MarshalJSON() ([]byte, error) {
	if r.single && len(r.numbers) == 1 {
		return json.Marshal(r.numbers[0])
	}
	if r.numbers == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.numbers)
}

// Envelope pairs one message body with the recipient set of the batch.
type Envelope struct {
	Message string         `json:"message"`
	To      []RecipientSet `json:"to"`
}

// BuildEnvelopes turns the caller's recipients and messages into one envelope
// per non-empty message body, in message order.
//
// Recipients are resolved once and shared by every envelope; an absent or
// empty recipient input fails with ErrInvalidRecipients whatever the
// messages hold. Absent or empty messages yield an empty slice and no error.
func BuildEnvelopes(recipients, messages Input) ([]Envelope, error) {
	set, err := buildRecipientSet(recipients)
	if err != nil {
		return nil, err
	}

	bodies := messageBodies(messages)
	envelopes := make([]Envelope, 0, len(bodies))
	for _, body := range bodies {
		envelopes = append(envelopes, Envelope{Message: body, To: []RecipientSet{set}})
	}
	return envelopes, nil
}

// buildRecipientSet keeps list input verbatim, trims each part of a delimited
// string and uses any other string as the only entry.
func buildRecipientSet(recipients Input) (RecipientSet, error) {
	if recipients.Empty() {
		return RecipientSet{}, ErrInvalidRecipients
	}

	switch {
	case recipients.kind == KindList:
		return RecipientSet{numbers: recipients.values}, nil
	case recipients.delimited():
		parts := strings.Split(recipients.value, Delimiter)
		for i, part := range parts {
			parts[i] = strings.TrimSpace(part)
		}
		return RecipientSet{numbers: parts}, nil
	default:
		return RecipientSet{numbers: []string{recipients.value}, single: true}, nil
	}
}

func messageBodies(messages Input) []string {
	if messages.Empty() {
		return nil
	}

	switch {
	case messages.kind == KindList:
		return trimAndCompact(messages.values)
	case messages.delimited():
		return trimAndCompact(strings.Split(messages.value, Delimiter))
	default:
		return []string{messages.value}
	}
}

// trimAndCompact right-trims every part and drops the ones left empty.
func trimAndCompact(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimRightFunc(part, unicode.IsSpace)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
