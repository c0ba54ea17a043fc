package game

import "testing"

func TestSymbolOf(t *testing.T) {
	names := []string{
		"echo_arena",
		"echo_arena_private",
		"echo_combat",
		"mpl_lobby_b2",
		"login_request",
	}

	seen := make(map[Symbol]string)
	for _, name := range names {
		sym := SymbolOf(name)
		if sym == SymbolNone {
			t.Errorf("SymbolOf(%q) produced the zero symbol", name)
		}
		if prev, ok := seen[sym]; ok {
			t.Errorf("SymbolOf(%q) collides with %q", name, prev)
		}
		seen[sym] = name

		// Symbols are stable across calls.
		if again := SymbolOf(name); again != sym {
			t.Errorf("SymbolOf(%q) is not deterministic: %v then %v", name, sym, again)
		}
	}
}

func TestSymbolString(t *testing.T) {
	if got := SymbolOf("echo_arena").String(); got == "" {
		t.Error("expected a hex representation for a nonzero symbol")
	}
}
