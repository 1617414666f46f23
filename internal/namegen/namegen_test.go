package namegen

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := Generate()
		parts := strings.Split(name, " ")
		if len(parts) != 2 {
			t.Fatalf("name %q is not two words", name)
		}
		if !contains(adjectives, parts[0]) {
			t.Errorf("unknown adjective %q", parts[0])
		}
		if !contains(nouns, parts[1]) {
			t.Errorf("unknown noun %q", parts[1])
		}
	}
}

func contains(words []string, w string) bool {
	for _, v := range words {
		if v == w {
			return true
		}
	}
	return false
}
