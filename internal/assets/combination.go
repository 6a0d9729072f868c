package assets

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Combination is a named bundle of same mime type files served as one
// payload.
type Combination struct {
	Name     string
	MimeType *MimeType
	Files    []*AssetFile
}

// NewCombination creates a combination. The name is normalized and given
// the mime type's default extension when it has none of its extensions.
func NewCombination(name string, mime *MimeType, files []*AssetFile) *Combination {
	return &Combination{
		Name:     combinationName(name, mime),
		MimeType: mime,
		Files:    files,
	}
}

func combinationName(name string, mime *MimeType) string {
	name = NormalizeName(name)
	if mime == nil {
		return name
	}
	for _, ext := range mime.Extensions() {
		if strings.HasSuffix(name, ext) {
			return name
		}
	}
	return name + mime.DefaultExtension()
}

// Names returns the names of the combined files in order.
func (c *Combination) Names() []string {
	out := make([]string, len(c.Files))
	for i, f := range c.Files {
		out[i] = f.Name
	}
	return out
}

// CombinationPolicy decides which files of a tag plan are combined.
type CombinationPolicy interface {
	Name() string
	// MimeType is the content type the policy applies to.
	MimeType() string
	DetermineCombinations(plan *TagPlan) []*Combination
}

// Names of the built-in combination policies.
const (
	PolicyCombineAllScripts = "combine-all-scripts"
	PolicyCombineAllStyles  = "combine-all-styles"
)

type combineAll struct {
	name     string
	mimeType string
}

// CombineAllScriptFiles combines every script of a plan into one bundle.
func CombineAllScriptFiles() CombinationPolicy {
	return combineAll{name: PolicyCombineAllScripts, mimeType: ContentTypeJavascript}
}

// CombineAllStylesheets combines every stylesheet of a plan into one bundle.
func CombineAllStylesheets() CombinationPolicy {
	return combineAll{name: PolicyCombineAllStyles, mimeType: ContentTypeCss}
}

func (p combineAll) Name() string     { return p.name }
func (p combineAll) MimeType() string { return p.mimeType }

func (p combineAll) DetermineCombinations(plan *TagPlan) []*Combination {
	if plan.MimeType == nil || plan.MimeType.Value != p.mimeType {
		return nil
	}
	files := plan.UncombinedFiles()
	if len(files) < 2 {
		return nil
	}
	name := "combo-" + ResourceHashFor(files)
	return []*Combination{NewCombination(name, plan.MimeType, files)}
}

// CombinationPolicyCache holds the installed combination policies.
type CombinationPolicyCache struct {
	mu       sync.RWMutex
	policies []CombinationPolicy
}

// NewCombinationPolicyCache creates an empty cache.
func NewCombinationPolicyCache() *CombinationPolicyCache {
	return &CombinationPolicyCache{}
}

// Add installs a policy; installing the same name twice is a no-op.
func (c *CombinationPolicyCache) Add(policy CombinationPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.policies {
		if p.Name() == policy.Name() {
			return
		}
	}
	c.policies = append(c.policies, policy)
}

// Policies returns the installed policies in installation order.
func (c *CombinationPolicyCache) Policies() []CombinationPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CombinationPolicy, len(c.policies))
	copy(out, c.policies)
	return out
}

// PoliciesFor returns the installed policies for a content type.
func (c *CombinationPolicyCache) PoliciesFor(mime *MimeType) []CombinationPolicy {
	var out []CombinationPolicy
	for _, p := range c.Policies() {
		if mime != nil && p.MimeType() == mime.Value {
			out = append(out, p)
		}
	}
	return out
}

// PolicyRegistry maps policy names to constructors. It replaces runtime type
// scanning: a policy is only available once it is registered here.
type PolicyRegistry struct {
	mu        sync.RWMutex
	factories map[string]func() CombinationPolicy
}

// NewPolicyRegistry creates a registry holding the built-in policies.
func NewPolicyRegistry() *PolicyRegistry {
	r := &PolicyRegistry{factories: make(map[string]func() CombinationPolicy)}
	r.Register(PolicyCombineAllScripts, CombineAllScriptFiles)
	r.Register(PolicyCombineAllStyles, CombineAllStylesheets)
	return r
}

// Register makes a policy constructor available under name.
func (r *PolicyRegistry) Register(name string, factory func() CombinationPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds the named policy.
func (r *PolicyRegistry) Create(name string) (CombinationPolicy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown combination policy %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return factory(), nil
}

// Names returns the registered policy names sorted.
func (r *PolicyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CombinationCache keeps combination candidates per content type and the
// combinations that plans actually use, by name.
type CombinationCache struct {
	mu         sync.RWMutex
	candidates map[string][]*Combination
	stored     map[string]*Combination
}

// NewCombinationCache creates an empty cache.
func NewCombinationCache() *CombinationCache {
	return &CombinationCache{
		candidates: make(map[string][]*Combination),
		stored:     make(map[string]*Combination),
	}
}

// AddFilesToCandidate registers a candidate combination. Nil files are
// dropped; a candidate with fewer than two files is ignored.
func (c *CombinationCache) AddFilesToCandidate(mime *MimeType, name string, files []*AssetFile) *Combination {
	if mime == nil {
		return nil
	}
	kept := make([]*AssetFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			kept = append(kept, f)
		}
	}
	if len(kept) < 2 {
		return nil
	}

	combo := NewCombination(name, mime, kept)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.candidates[mime.Value] {
		if existing.Name == combo.Name {
			return existing
		}
	}
	c.candidates[mime.Value] = append(c.candidates[mime.Value], combo)
	return combo
}

// Candidates returns the candidates for a content type in registration
// order.
func (c *CombinationCache) Candidates(mime *MimeType) []*Combination {
	if mime == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Combination, len(c.candidates[mime.Value]))
	copy(out, c.candidates[mime.Value])
	return out
}

// Store records a combination used by a plan, making it addressable by name.
func (c *CombinationCache) Store(combo *Combination) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[combo.Name] = combo
}

// Find returns a stored combination by name.
func (c *CombinationCache) Find(name string) *Combination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stored[NormalizeName(name)]
}

// All returns every stored combination sorted by name.
func (c *CombinationCache) All() []*Combination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Combination, 0, len(c.stored))
	for _, combo := range c.stored {
		out = append(out, combo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
