package assets

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// PlanSubject is one entry of a tag plan: a single file or a combination.
type PlanSubject struct {
	File        *AssetFile
	Combination *Combination
}

// Name is the name the subject is requested under.
func (s PlanSubject) Name() string {
	if s.Combination != nil {
		return s.Combination.Name
	}
	return s.File.Name
}

// Files returns the files the subject serves.
func (s PlanSubject) Files() []*AssetFile {
	if s.Combination != nil {
		return s.Combination.Files
	}
	return []*AssetFile{s.File}
}

// TagPlan is the ordered list of requests a page makes for a group of same
// mime type assets, after combinations have been applied.
type TagPlan struct {
	MimeType *MimeType
	Subjects []PlanSubject
}

// NewTagPlan creates a plan of single files.
func NewTagPlan(mime *MimeType, files []*AssetFile) *TagPlan {
	plan := &TagPlan{MimeType: mime}
	for _, f := range files {
		plan.Subjects = append(plan.Subjects, PlanSubject{File: f})
	}
	return plan
}

// UncombinedFiles returns the files not yet part of a combination.
func (p *TagPlan) UncombinedFiles() []*AssetFile {
	var out []*AssetFile
	for _, s := range p.Subjects {
		if s.Combination == nil {
			out = append(out, s.File)
		}
	}
	return out
}

// Names returns the requested names of the plan's subjects.
func (p *TagPlan) Names() []string {
	out := make([]string, len(p.Subjects))
	for i, s := range p.Subjects {
		out[i] = s.Name()
	}
	return out
}

// Urls returns the request paths a page would use for the plan.
func (p *TagPlan) Urls() []string {
	folder := AssetFolder("")
	if p.MimeType != nil {
		folder = p.MimeType.Folder
	}
	out := make([]string, len(p.Subjects))
	for i, s := range p.Subjects {
		out[i] = NewAssetPath(folder, s.Name(), p.MimeType).Url()
	}
	return out
}

// TryCombination replaces the single-file subjects that make up combo with
// the combination, placed where its first file was. It applies only when
// every file of combo is present uncombined.
func (p *TagPlan) TryCombination(combo *Combination) bool {
	if len(combo.Files) == 0 {
		return false
	}
	index := make(map[string]int, len(p.Subjects))
	for i, s := range p.Subjects {
		if s.Combination == nil {
			index[s.File.Name] = i
		}
	}
	first := len(p.Subjects)
	for _, f := range combo.Files {
		i, ok := index[f.Name]
		if !ok {
			return false
		}
		if i < first {
			first = i
		}
	}

	members := make(map[string]bool, len(combo.Files))
	for _, f := range combo.Files {
		members[f.Name] = true
	}
	subjects := make([]PlanSubject, 0, len(p.Subjects)-len(combo.Files)+1)
	for i, s := range p.Subjects {
		if i == first {
			subjects = append(subjects, PlanSubject{Combination: combo})
			continue
		}
		if s.Combination == nil && members[s.File.Name] {
			continue
		}
		subjects = append(subjects, s)
	}
	p.Subjects = subjects
	return true
}

// TagPlanCache builds and memoizes one TagPlan per mime type and name list.
// Concurrent first requests for the same key share one build.
type TagPlanCache struct {
	files        FileLookup
	policies     *CombinationPolicyCache
	combinations *CombinationCache
	log          logging.Logger

	mu    sync.RWMutex
	plans map[string]*TagPlan
	group singleflight.Group
}

// NewTagPlanCache creates a plan cache.
func NewTagPlanCache(files FileLookup, policies *CombinationPolicyCache, combinations *CombinationCache, log logging.Logger) *TagPlanCache {
	return &TagPlanCache{
		files:        files,
		policies:     policies,
		combinations: combinations,
		log:          logging.OrNop(log).WithComponent("tag_plan_cache"),
		plans:        make(map[string]*TagPlan),
	}
}

// planKey joins with NUL, which cannot appear in an asset name.
func planKey(mime *MimeType, names []string) string {
	return mime.String() + "\x00" + strings.Join(names, "\x00")
}

// PlanFor returns the plan for names, building it on first use. A failed
// build is not cached.
func (c *TagPlanCache) PlanFor(mime *MimeType, names []string) (*TagPlan, error) {
	key := planKey(mime, names)

	c.mu.RLock()
	plan, ok := c.plans[key]
	c.mu.RUnlock()
	if ok {
		return plan, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		existing, ok := c.plans[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built, err := c.build(mime, names)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.plans[key] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TagPlan), nil
}

func (c *TagPlanCache) build(mime *MimeType, names []string) (*TagPlan, error) {
	files := make([]*AssetFile, 0, len(names))
	for _, name := range names {
		f := c.files.Find(name)
		if f == nil {
			return nil, &pipeerrors.UnresolvedError{Name: name}
		}
		files = append(files, f)
	}

	plan := NewTagPlan(mime, files)

	for _, policy := range c.policies.PoliciesFor(mime) {
		for _, combo := range policy.DetermineCombinations(plan) {
			c.combinations.AddFilesToCandidate(combo.MimeType, combo.Name, combo.Files)
		}
	}

	for _, candidate := range c.combinations.Candidates(mime) {
		if plan.TryCombination(candidate) {
			c.combinations.Store(candidate)
			c.log.Debug(context.Background(), "Applied combination",
				"combination", candidate.Name, "files", len(candidate.Files))
		}
	}

	return plan, nil
}

// Plans returns every cached plan.
func (c *TagPlanCache) Plans() []*TagPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*TagPlan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	return out
}

// Reset drops every cached plan.
func (c *TagPlanCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = make(map[string]*TagPlan)
}
