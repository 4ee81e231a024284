package ledger

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Safelist is the fixed set of tokens whose reserves are tracked and whose
// sales earn rewards.
type Safelist struct {
	tokens map[common.Address]struct{}
}

func NewSafelist(tokens []common.Address) Safelist {
	s := Safelist{tokens: make(map[common.Address]struct{}, len(tokens))}
	for _, t := range tokens {
		s.tokens[t] = struct{}{}
	}
	return s
}

func (s Safelist) Contains(token common.Address) bool {
	_, ok := s.tokens[token]
	return ok
}

func (s Safelist) Len() int { return len(s.tokens) }

// Tokens returns the members in ascending byte order.
func (s Safelist) Tokens() []common.Address {
	out := make([]common.Address, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
