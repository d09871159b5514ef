package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/skinmatch/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	// Keep letters, digits, hyphen and whitespace; everything else is stripped.
	ingredientPunctRegex = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	multiWhitespaceRegex = regexp.MustCompile(`\s+`)
	listSeparatorRegex   = regexp.MustCompile(`[,;]\s*`)
)

// diacriticsStripper decomposes to NFD, drops combining marks, recomposes.
var diacriticsStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// DefaultFuzzyThreshold is the minimum similarity (0-100) for a cleaned term
// to be resolved to a known ingredient. It materially changes recall and
// precision of matching, so it is configurable rather than inlined.
const DefaultFuzzyThreshold = 88.0

// aliasEntry is one authored row of the INCI alias table. Order matters:
// when a string appears under several entries, the earliest entry wins
// canonical resolution.
type aliasEntry struct {
	canonical string
	aliases   []string
}

// inciAliases is the curated alias table for common skincare actives.
// Authored asymmetrically (A may list B without B listing A); the normalizer
// symmetrizes each entry at load time so lookups are bidirectional.
var inciAliases = []aliasEntry{
	{"niacinamide", []string{"nicotinamide", "vitamin b3", "vitamin b-3"}},
	{"nicotinamide", []string{"niacinamide", "vitamin b3", "vitamin b-3"}},

	{"salicylic acid", []string{"bha", "beta hydroxy acid", "2-hydroxybenzoic acid"}},
	{"bha", []string{"salicylic acid", "beta hydroxy acid"}},

	{"ascorbic acid", []string{"vitamin c", "l-ascorbic acid", "magnesium ascorbyl phosphate", "sodium ascorbyl phosphate"}},
	{"vitamin c", []string{"ascorbic acid", "l-ascorbic acid"}},
	{"l-ascorbic acid", []string{"ascorbic acid", "vitamin c"}},
	{"magnesium ascorbyl phosphate", []string{"vitamin c", "ascorbic acid", "map"}},
	{"sodium ascorbyl phosphate", []string{"vitamin c", "ascorbic acid", "sap"}},

	{"retinol", []string{"vitamin a", "retinyl palmitate", "retinyl acetate"}},
	{"retinyl palmitate", []string{"retinol", "vitamin a"}},
	{"retinyl acetate", []string{"retinol", "vitamin a"}},
	{"tretinoin", []string{"retinoic acid", "all-trans retinoic acid"}},
	{"adapalene", []string{"differin"}},

	{"glycolic acid", []string{"aha", "alpha hydroxy acid", "hydroxyacetic acid"}},
	{"lactic acid", []string{"aha", "alpha hydroxy acid", "2-hydroxypropanoic acid"}},
	{"mandelic acid", []string{"aha", "alpha hydroxy acid"}},
	{"aha", []string{"glycolic acid", "lactic acid", "alpha hydroxy acid"}},

	{"hyaluronic acid", []string{"sodium hyaluronate", "ha", "hyaluronan"}},
	{"sodium hyaluronate", []string{"hyaluronic acid", "ha"}},

	{"ceramides", []string{"ceramide np", "ceramide ap", "ceramide eop", "phytosphingosine"}},
	{"ceramide np", []string{"ceramides"}},
	{"ceramide ap", []string{"ceramides"}},
	{"ceramide eop", []string{"ceramides"}},

	{"azelaic acid", []string{"nonanedioic acid"}},

	{"tocopherol", []string{"vitamin e", "alpha-tocopherol", "tocopheryl acetate"}},
	{"vitamin e", []string{"tocopherol", "alpha-tocopherol"}},
	{"tocopheryl acetate", []string{"vitamin e", "tocopherol"}},

	{"peptides", []string{"palmitoyl pentapeptide", "acetyl hexapeptide", "copper peptides"}},
	{"palmitoyl pentapeptide", []string{"peptides", "matrixyl"}},
	{"acetyl hexapeptide", []string{"peptides", "argireline"}},
	{"copper peptides", []string{"peptides", "copper tripeptide"}},

	{"zinc oxide", []string{"zno"}},

	{"aqua", []string{"water"}},
	{"water", []string{"aqua"}},
	{"dimethicone", []string{"silicone"}},
	{"cyclomethicone", []string{"silicone"}},
	{"isopropyl myristate", []string{"ipm"}},
	{"butylene glycol", []string{"bg"}},
	{"propylene glycol", []string{"pg"}},
	{"phenoxyethanol", []string{"preservative"}},
	{"methylparaben", []string{"preservative"}},
	{"ethylparaben", []string{"preservative"}},
	{"sodium benzoate", []string{"preservative"}},
	{"potassium sorbate", []string{"preservative"}},
}

// NormalizerConfig holds configuration for the ingredient normalizer.
type NormalizerConfig struct {
	FuzzyThreshold float64
}

// Normalizer canonicalizes free-text ingredient names into stable INCI
// tokens using the alias table, with fuzzy string matching as a fallback.
type Normalizer struct {
	fuzzyThreshold float64
	keys           map[string]bool     // entry keys; exact hits return themselves
	canonical      map[string]string   // any known term -> canonical token, first entry wins
	expansions     map[string][]string // known term -> symmetrized alias group
	known          []string            // all known terms, authored order, for the fuzzy sweep
}

// NewNormalizer builds a normalizer from the curated alias table. Each
// authored entry is symmetrized: every member of {canonical} ∪ aliases
// expands to the whole group, so alias lookups work in both directions.
func NewNormalizer(config NormalizerConfig) *Normalizer {
	threshold := config.FuzzyThreshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}

	n := &Normalizer{
		fuzzyThreshold: threshold,
		keys:           make(map[string]bool),
		canonical:      make(map[string]string),
		expansions:     make(map[string][]string),
	}

	seen := make(map[string]bool)
	for _, entry := range inciAliases {
		n.keys[entry.canonical] = true
		group := append([]string{entry.canonical}, entry.aliases...)
		for _, term := range group {
			if _, ok := n.canonical[term]; !ok {
				n.canonical[term] = entry.canonical
			}
			for _, other := range group {
				if other != term && !containsString(n.expansions[term], other) {
					n.expansions[term] = append(n.expansions[term], other)
				}
			}
			if !seen[term] {
				seen[term] = true
				n.known = append(n.known, term)
			}
		}
	}

	return n
}

// NormalizeTerm canonicalizes a single ingredient name. Unknown ingredients
// come back cleaned but otherwise unchanged, still usable for exact-string
// matching against other unknowns. Empty input yields "".
func (n *Normalizer) NormalizeTerm(raw string) string {
	cleaned := cleanIngredient(raw)
	if cleaned == "" {
		return ""
	}

	// An exact entry key is already canonical and comes back unchanged;
	// only non-key aliases resolve to their first entry's key.
	if n.keys[cleaned] {
		return cleaned
	}
	if canonical, ok := n.canonical[cleaned]; ok {
		return canonical
	}

	// Fuzzy fallback against the union of all known canonicals and aliases.
	// The threshold is a hard cutoff: no partial-credit confidence leaks
	// into downstream scoring.
	bestScore := n.fuzzyThreshold
	bestTerm := ""
	for _, term := range n.known {
		if score := similarityRatio(cleaned, term); score >= bestScore {
			bestScore = score
			bestTerm = term
		}
	}
	if bestTerm != "" {
		return n.canonical[bestTerm]
	}

	return cleaned
}

// NormalizeList normalizes a list of ingredient names, preserving order and
// dropping duplicates and empties.
func (n *Normalizer) NormalizeList(raw []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ingredient := range raw {
		token := n.NormalizeTerm(ingredient)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
	}
	return out
}

// NormalizeRawList splits a comma/semicolon-separated ingredient string and
// normalizes it like NormalizeList.
func (n *Normalizer) NormalizeRawList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return n.NormalizeList(listSeparatorRegex.Split(raw, -1))
}

// Aliases returns a token together with every term it resolves to or from.
func (n *Normalizer) Aliases(token string) []string {
	normalized := n.NormalizeTerm(token)
	if normalized == "" {
		return nil
	}
	out := []string{normalized}
	out = append(out, n.expansions[normalized]...)
	return out
}

// ExpandSearchTerms returns the union of every input token's alias set,
// including the tokens themselves.
func (n *Normalizer) ExpandSearchTerms(tokens []string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, token := range tokens {
		for _, alias := range n.Aliases(token) {
			terms[alias] = struct{}{}
		}
	}
	return terms
}

// TermGroups expands each token into its own alias group, keeping the
// per-ingredient AND semantics the candidate filter needs.
func (n *Normalizer) TermGroups(tokens []string) []domain.TermGroup {
	groups := make([]domain.TermGroup, 0, len(tokens))
	for _, token := range tokens {
		aliases := make(map[string]struct{})
		for _, alias := range n.Aliases(token) {
			aliases[alias] = struct{}{}
		}
		groups = append(groups, domain.TermGroup{Token: token, Aliases: aliases})
	}
	return groups
}

// cleanIngredient lower-cases, strips diacritics and punctuation (keeping
// hyphen and space), and collapses whitespace.
func cleanIngredient(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if stripped, _, err := transform.String(diacriticsStripper, s); err == nil {
		s = stripped
	}
	s = ingredientPunctRegex.ReplaceAllString(s, "")
	s = multiWhitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// similarityRatio is a normalized edit-distance ratio on a 0-100 scale:
// 100 means identical, 0 means nothing in common.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshteinDistance(a, b)
	return (1 - float64(dist)/float64(longest)) * 100
}

// levenshteinDistance calculates the edit distance between two strings
// using two rows instead of the full matrix.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
