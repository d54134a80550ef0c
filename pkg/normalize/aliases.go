package normalize

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// builtinAliases maps a canonical (normalized) utility name to the
// abbreviation each rep uses for it in its own sheets. Keys at the
// second level are lower-cased rep names.
var builtinAliases = map[string]map[string]string{
	"centerpoint":          {"engie": "cpt", "atlantic": "centerpoint"},
	"aeptexascentral":      {"engie": "aepcpl", "atlantic": "aep central"},
	"aeptexasnorth":        {"engie": "aepwtu", "atlantic": "aep north"},
	"oncor":                {"engie": "oncor", "atlantic": "oncor"},
	"texas-newmexicopower": {"engie": "tnmp", "atlantic": "tnmp"},
}

// AliasTable resolves a user-supplied utility name to the spelling a
// particular rep uses. Resolution must happen before per-rep filtering.
type AliasTable struct {
	aliases map[string]map[string]string
}

// DefaultAliases returns the builtin utility alias table.
func DefaultAliases() *AliasTable {
	return &AliasTable{aliases: builtinAliases}
}

// LoadAliases reads an alias table from a TOML file shaped as
//
//	[oncor]
//	engie = "oncor"
//	atlantic = "oncor"
//
// Top-level keys are canonical utility names, second-level keys are rep
// names; both are normalized on load.
func LoadAliases(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file (%s): %w", path, err)
	}
	var raw map[string]map[string]string
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse alias file (%s): %w", path, err)
	}
	aliases := make(map[string]map[string]string, len(raw))
	for u, reps := range raw {
		m := make(map[string]string, len(reps))
		for rep, local := range reps {
			m[Utility(rep)] = local
		}
		aliases[Utility(u)] = m
	}
	return &AliasTable{aliases: aliases}, nil
}

// ResolveForRep returns the rep-local spelling of a utility. When no
// mapping exists for the utility+rep pair the normalized input is
// returned unchanged, on the assumption the source already uses the
// canonical name.
func (a *AliasTable) ResolveForRep(utility, repName string) string {
	normalized := Utility(utility)
	if reps, ok := a.aliases[normalized]; ok {
		if local, ok := reps[Utility(repName)]; ok {
			return local
		}
	}
	return normalized
}
