package assets

import (
	"context"
	"fmt"

	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// AssetPolicy runs once at activation against the finished graphs.
type AssetPolicy interface {
	Apply(ctx context.Context, log logging.Logger, files *AssetFileGraph, graph *AssetGraph) error
}

// AssetPolicyFunc adapts a function to AssetPolicy.
type AssetPolicyFunc func(ctx context.Context, log logging.Logger, files *AssetFileGraph, graph *AssetGraph) error

func (f AssetPolicyFunc) Apply(ctx context.Context, log logging.Logger, files *AssetFileGraph, graph *AssetGraph) error {
	return f(ctx, log, files, graph)
}

// ActivatePolicies applies every policy in order. The first failure stops
// activation and is returned, since a broken policy means the pipeline is
// misconfigured.
func ActivatePolicies(ctx context.Context, log logging.Logger, policies []AssetPolicy, files *AssetFileGraph, graph *AssetGraph) error {
	log = logging.OrNop(log).WithComponent("policies")
	for _, policy := range policies {
		name := fmt.Sprintf("%T", policy)
		log.Debug(ctx, "Running asset policy", "policy", name)

		if err := policy.Apply(ctx, log, files, graph); err != nil {
			return pipeerrors.NewInternalError(pipeerrors.ErrCodePolicyFailed,
				fmt.Sprintf("asset policy %s failed", name), err)
		}
	}
	return nil
}

// CombinationBuildingActivator installs the combination policies named in the
// graph and registers every explicit combination as a candidate.
type CombinationBuildingActivator struct {
	registry     *PolicyRegistry
	policies     *CombinationPolicyCache
	combinations *CombinationCache
}

// NewCombinationBuildingActivator creates the activator.
func NewCombinationBuildingActivator(registry *PolicyRegistry, policies *CombinationPolicyCache, combinations *CombinationCache) *CombinationBuildingActivator {
	return &CombinationBuildingActivator{
		registry:     registry,
		policies:     policies,
		combinations: combinations,
	}
}

// Apply implements AssetPolicy. An unknown policy name is an error. A
// combination takes its content type from its first member; members that do
// not resolve or have another content type are logged and left out.
func (a *CombinationBuildingActivator) Apply(ctx context.Context, log logging.Logger, files *AssetFileGraph, graph *AssetGraph) error {
	log = logging.OrNop(log)

	for _, name := range graph.PolicyNames() {
		policy, err := a.registry.Create(name)
		if err != nil {
			return pipeerrors.NewConfigError(pipeerrors.ErrCodeUnknownPolicy, "cannot install combination policy", err)
		}
		log.Info(ctx, "Installing combination policy", "policy", policy.Name())
		a.policies.Add(policy)
	}

	mimes := files.Settings().MimeTypes()
	graph.ForCombinations(func(combo string, names []string) {
		if len(names) == 0 {
			return
		}
		mime := mimes.ByFileName(names[0])
		var members []*AssetFile
		for _, n := range names {
			f := files.Find(graph.ResolveAlias(n))
			if f == nil {
				log.Warn(ctx, nil, "Combination member not found", "combination", combo, "asset", n)
				continue
			}
			if f.MimeType != mime {
				log.Warn(ctx, nil, "Combination member has a different content type",
					"combination", combo, "asset", f.Name, "content_type", f.MimeType.String(), "expected", mime.String())
				continue
			}
			members = append(members, f)
		}
		if c := a.combinations.AddFilesToCandidate(mime, combo, members); c != nil {
			log.Debug(ctx, "Registered combination candidate", "combination", c.Name, "files", len(c.Files))
		}
	})

	return nil
}
