package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/config"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// Manifest is the assets.yml a package ships next to its content folder.
// It uses the same shapes as the assets section of the configuration file.
type Manifest struct {
	Sets         []config.SetConfig         `yaml:"sets"`
	Aliases      []config.AliasConfig       `yaml:"aliases"`
	Dependencies []config.DependencyConfig  `yaml:"dependencies"`
	Combinations []config.CombinationConfig `yaml:"combinations"`
	Policies     []string                   `yaml:"policies"`
	OrderFirst   []string                   `yaml:"order_first"`
}

// LoadManifest reads the manifest at path. A missing file is not an error
// and yields a nil manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead,
			fmt.Sprintf("cannot read manifest %s", path), err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		var pe *pipeerrors.PipelineError
		if errors.As(err, &pe) {
			pe.WithContext("manifest", path)
		}
		return nil, err
	}
	return m, nil
}

// ParseManifest decodes and validates manifest yaml. Unknown keys are
// rejected so that a misspelled section is not silently ignored.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, pipeerrors.NewConfigError(pipeerrors.ErrCodeManifestInvalid, "malformed asset manifest", err)
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) validate() error {
	invalid := func(format string, args ...interface{}) error {
		return pipeerrors.NewConfigError(pipeerrors.ErrCodeManifestInvalid, fmt.Sprintf(format, args...), nil)
	}

	for i, set := range m.Sets {
		if strings.TrimSpace(set.Name) == "" {
			return invalid("set %d has no name", i)
		}
	}
	for i, alias := range m.Aliases {
		if alias.Name == "" || alias.Target == "" {
			return invalid("alias %d needs both name and target", i)
		}
	}
	for i, dep := range m.Dependencies {
		if dep.Name == "" {
			return invalid("dependency %d has no name", i)
		}
	}
	for _, combo := range m.Combinations {
		if combo.Name == "" {
			return invalid("combination without a name")
		}
		if len(combo.Files) < 2 {
			return invalid("combination %q needs at least two files", combo.Name)
		}
	}
	return nil
}

// Declarations is the part of the asset graph a manifest or the
// configuration file can declare.
type Declarations struct {
	Sets         []config.SetConfig
	Aliases      []config.AliasConfig
	Dependencies []config.DependencyConfig
	Combinations []config.CombinationConfig
	Policies     []string
	OrderFirst   []string
}

// Declarations returns the manifest content.
func (m *Manifest) Declarations() Declarations {
	return Declarations{
		Sets:         m.Sets,
		Aliases:      m.Aliases,
		Dependencies: m.Dependencies,
		Combinations: m.Combinations,
		Policies:     m.Policies,
		OrderFirst:   m.OrderFirst,
	}
}

// ConfigDeclarations returns the declarations of the configuration file.
func ConfigDeclarations(cfg *config.AssetsConfig) Declarations {
	return Declarations{
		Sets:         cfg.Sets,
		Aliases:      cfg.Aliases,
		Dependencies: cfg.Dependencies,
		Combinations: cfg.Combinations,
		Policies:     cfg.Policies,
		OrderFirst:   cfg.OrderFirst,
	}
}

// ApplyTo registers every declaration with graph. Declarations are additive:
// a set declared twice collects the members of both.
func (d Declarations) ApplyTo(graph *assets.AssetGraph) {
	for _, set := range d.Sets {
		for _, member := range set.Members {
			graph.AddToSet(set.Name, member)
		}
	}
	for _, alias := range d.Aliases {
		graph.Alias(alias.Name, alias.Target)
	}
	for _, dep := range d.Dependencies {
		graph.Dependency(dep.Name, dep.Requires...)
	}
	for _, combo := range d.Combinations {
		graph.AddToCombination(combo.Name, combo.Files...)
	}
	for _, policy := range d.Policies {
		graph.RegisterPolicy(policy)
	}
	if len(d.OrderFirst) > 0 {
		graph.AddOrderRule(assets.NewFirstOrderRule(d.OrderFirst...))
	}
}
