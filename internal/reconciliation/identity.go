package reconciliation

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldedSuffixKey is SuffixKey made insensitive to case and diacritics,
// so "Athletics" and "ATHLÉTICS" share a key.
func FoldedSuffixKey(name string) (string, error) {
	key, err := SuffixKey(name)
	if err != nil {
		return "", err
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, key)
	if err != nil {
		return "", &InvalidIdentityError{Name: name, Reason: err.Error()}
	}

	return cases.Fold().String(stripped), nil
}

// AliasTable maps known spellings of a team onto one canonical key, for
// sources whose names share no common last token (abbreviations, relocations).
// Names not in the table fall through to Fallback.
type AliasTable struct {
	aliases  map[string]string
	Fallback IdentityFunc
}

// aliasFile is the on-disk shape:
//
//	aliases:
//	  Athletics: [Oakland Athletics, "OAK", "A's"]
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// ParseAliasTable builds a table from YAML. A nil fallback means SuffixKey.
func ParseAliasTable(data []byte, fallback IdentityFunc) (*AliasTable, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias table: %w", err)
	}

	if fallback == nil {
		fallback = SuffixKey
	}

	canonicals := make([]string, 0, len(f.Aliases))
	for canonical := range f.Aliases {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	// owner records which canonical name claimed each spelling.
	owner := make(map[string]string)
	for _, raw := range canonicals {
		canonical := collapse(raw)
		if canonical == "" {
			return nil, fmt.Errorf("alias table has an empty canonical name")
		}
		if _, ok := owner[canonical]; ok {
			return nil, fmt.Errorf("canonical name %q is listed twice", canonical)
		}
		owner[canonical] = canonical
	}

	for _, raw := range canonicals {
		canonical := collapse(raw)
		for _, n := range f.Aliases[raw] {
			n = collapse(n)
			if n == "" {
				continue
			}
			if prev, ok := owner[n]; ok && prev != canonical {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", n, prev, canonical)
			}
			owner[n] = canonical
		}
	}

	// Keys go through the fallback so listed and unlisted spellings of a
	// team land in the same key space.
	keys := make(map[string]string, len(canonicals))
	for _, raw := range canonicals {
		canonical := collapse(raw)
		key, err := fallback(canonical)
		if err != nil {
			return nil, fmt.Errorf("alias table canonical %q: %w", canonical, err)
		}
		keys[canonical] = key
	}

	table := &AliasTable{
		aliases:  make(map[string]string, len(owner)),
		Fallback: fallback,
	}
	for name, canonical := range owner {
		table.aliases[name] = keys[canonical]
	}

	return table, nil
}

// LoadAliasTable reads a YAML alias table from disk.
func LoadAliasTable(path string, fallback IdentityFunc) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias table: %w", err)
	}
	return ParseAliasTable(data, fallback)
}

// Key is an IdentityFunc.
func (t *AliasTable) Key(name string) (string, error) {
	if key, ok := t.aliases[collapse(name)]; ok {
		return key, nil
	}
	return t.Fallback(name)
}

// Len returns the number of known spellings.
func (t *AliasTable) Len() int {
	return len(t.aliases)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
