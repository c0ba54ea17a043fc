package game

import (
	"fmt"
	"os"
)

const (
	extractMinNameLen = 4
	extractMaxNameLen = 64
	extractMaxSymbols = 250000
)

// ExtractSymbols scans a game executable for plausible symbol names and
// returns them mapped to their symbols. The scan is a best effort string
// sweep: runs of identifier characters terminated by a NUL, the way the
// game embeds its name tables.
func ExtractSymbols(path string) (map[string]Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading game executable: %w", err)
	}

	symbols := make(map[string]Symbol)
	start := -1
	for i, b := range data {
		if isSymbolNameChar(b) {
			if start < 0 {
				start = i
			}
			continue
		}

		if start >= 0 && b == 0 {
			name := string(data[start:i])
			if len(name) >= extractMinNameLen && len(name) <= extractMaxNameLen {
				symbols[name] = SymbolOf(name)
				if len(symbols) >= extractMaxSymbols {
					break
				}
			}
		}
		start = -1
	}
	return symbols, nil
}

func isSymbolNameChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '-':
		return true
	}
	return false
}
