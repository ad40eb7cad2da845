// Package ids issues record identifiers.
package ids

import "github.com/google/uuid"

// Provider issues unique identifiers for new records.
type Provider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers, which sort by creation time.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Sequence hands out a fixed list of identifiers; used where deterministic ids matter.
type Sequence struct {
	values []string
	next   int
}

// NewSequence returns a Sequence over values.
func NewSequence(values ...string) *Sequence {
	return &Sequence{values: append([]string(nil), values...)}
}

func (s *Sequence) NewID() (string, error) {
	if s.next >= len(s.values) {
		return "", errSequenceExhausted
	}
	value := s.values[s.next]
	s.next++
	return value, nil
}
