package assets

import (
	"sort"
	"strings"
)

// OrderRule orders a pair of files when Matches accepts the pair. Compare
// returns a negative number when one sorts before two.
type OrderRule interface {
	Matches(one, two *AssetFile) bool
	Compare(one, two *AssetFile) int
}

// AlphabeticOrderRule orders by name using ordinal comparison. It matches
// every pair and always closes a FileSorter's rule chain.
type AlphabeticOrderRule struct{}

func (AlphabeticOrderRule) Matches(_, _ *AssetFile) bool { return true }

func (AlphabeticOrderRule) Compare(one, two *AssetFile) int {
	return strings.Compare(one.Name, two.Name)
}

// FirstOrderRule puts the named libraries ahead of everything else, in the
// order they were given.
type FirstOrderRule struct {
	names []string
}

// NewFirstOrderRule creates a rule for the given asset names.
func NewFirstOrderRule(names ...string) *FirstOrderRule {
	r := &FirstOrderRule{}
	for _, n := range names {
		if n = NormalizeName(n); n != "" {
			r.names = append(r.names, n)
		}
	}
	return r
}

func (r *FirstOrderRule) indexOf(f *AssetFile) int {
	for i, n := range r.names {
		if n == f.Name {
			return i
		}
	}
	return -1
}

func (r *FirstOrderRule) Matches(one, two *AssetFile) bool {
	return r.indexOf(one) >= 0 || r.indexOf(two) >= 0
}

func (r *FirstOrderRule) Compare(one, two *AssetFile) int {
	i, j := r.indexOf(one), r.indexOf(two)
	switch {
	case i >= 0 && j >= 0:
		return i - j
	case i >= 0:
		return -1
	case j >= 0:
		return 1
	}
	return 0
}

// FileSorter chains order rules: the first rule that matches a pair and does
// not report a tie decides it.
type FileSorter struct {
	rules []OrderRule
}

// NewFileSorter creates a sorter over rules followed by the alphabetic rule.
func NewFileSorter(rules ...OrderRule) *FileSorter {
	chain := make([]OrderRule, 0, len(rules)+1)
	for _, r := range rules {
		if r != nil {
			chain = append(chain, r)
		}
	}
	return &FileSorter{rules: append(chain, AlphabeticOrderRule{})}
}

// Compare orders two files.
func (s *FileSorter) Compare(one, two *AssetFile) int {
	for _, rule := range s.rules {
		if !rule.Matches(one, two) {
			continue
		}
		if c := rule.Compare(one, two); c != 0 {
			return c
		}
	}
	return 0
}

// Sort orders files in place.
func (s *FileSorter) Sort(files []*AssetFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return s.Compare(files[i], files[j]) < 0
	})
}
