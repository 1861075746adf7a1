package engine

import (
	"fmt"
	"sort"
)

// Name is the user-facing engine choice.
type Name string

const (
	Stockfish17       Name = "stockfish_17"
	Stockfish17Lite   Name = "stockfish_17_lite"
	Stockfish16_1     Name = "stockfish_16_1"
	Stockfish16_1Lite Name = "stockfish_16_1_lite"
	Stockfish16       Name = "stockfish_16"
	Stockfish16NNUE   Name = "stockfish_16_nnue"
	Stockfish11       Name = "stockfish_11"
)

// Identity selects a variant adapter. Lite and NNUE are the per-variant
// flavor flags; a variant reads the one it understands.
type Identity struct {
	Family  string `json:"family"`
	Version string `json:"version"`
	Lite    bool   `json:"lite,omitempty"`
	NNUE    bool   `json:"nnue,omitempty"`
}

var identities = map[Name]Identity{
	Stockfish17:       {Family: "stockfish", Version: "17"},
	Stockfish17Lite:   {Family: "stockfish", Version: "17", Lite: true},
	Stockfish16_1:     {Family: "stockfish", Version: "16.1"},
	Stockfish16_1Lite: {Family: "stockfish", Version: "16.1", Lite: true},
	Stockfish16:       {Family: "stockfish", Version: "16"},
	Stockfish16NNUE:   {Family: "stockfish", Version: "16", NNUE: true},
	Stockfish11:       {Family: "stockfish", Version: "11"},
}

// Identity resolves a name to the identity of its variant.
func (n Name) Identity() (Identity, error) {
	id, ok := identities[n]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrUnknownEngine, string(n))
	}
	return id, nil
}

// Name maps an identity back to its name, or "" if there is none.
func (id Identity) Name() Name {
	for name, candidate := range identities {
		if candidate == id {
			return name
		}
	}
	return ""
}

func (id Identity) String() string {
	if name := id.Name(); name != "" {
		return string(name)
	}
	return fmt.Sprintf("%s-%s", id.Family, id.Version)
}

// Names lists every known engine name in a stable order.
func Names() []Name {
	names := make([]Name, 0, len(identities))
	for name := range identities {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
