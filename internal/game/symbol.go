package game

import "fmt"

// Symbol is a stable 64-bit identifier for a game-defined concept such as a
// level, game mode, or region. The game client and servers exchange symbols
// rather than names; the mapping back to human-readable names lives in the
// symbol cache resource.
type Symbol int64

// SymbolNone marks an unspecified symbol in matching criteria.
const SymbolNone Symbol = 0

func (s Symbol) String() string {
	return fmt.Sprintf("0x%016X", uint64(s))
}

// SymbolOf derives a symbol from a name using a 64-bit FNV-1a hash. Symbols
// shipped by the game client are precomputed with the same function, so a
// freshly derived symbol for a known name will match the client's value.
func SymbolOf(name string) Symbol {
	const (
		offset = 0xCBF29CE484222325
		prime  = 0x00000100000001B3
	)

	hash := uint64(offset)
	for i := 0; i < len(name); i++ {
		hash ^= uint64(name[i])
		hash *= prime
	}
	return Symbol(hash)
}
