package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetpipe/internal/config"
	pipeerrors "github.com/conneroisu/assetpipe/internal/errors"
)

// ConfigFileName is the configuration file written by init and read by
// every command.
const ConfigFileName = ".assetpipe.yml"

// InitService handles project initialization business logic
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Minimal skips the example assets.
	Minimal bool
	// Template is "default" or "bundled"; bundled turns on the
	// combine-all policies.
	Template string
	// Force overwrites an existing configuration file.
	Force bool
}

// Templates lists the accepted InitOptions.Template values.
var Templates = []string{"default", "bundled"}

// InitProject lays out the content folders, writes a configuration file
// and, unless minimal, a few example assets wired into a set.
func (s *InitService) InitProject(opts InitOptions) error {
	if opts.Template == "" {
		opts.Template = "default"
	}
	if !validTemplate(opts.Template) {
		return pipeerrors.NewValidationError(pipeerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown template %q, use one of: %s", opts.Template, strings.Join(Templates, ", ")))
	}

	if err := os.MkdirAll(opts.ProjectDir, 0o755); err != nil {
		return pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead, "cannot create project directory", err).
			WithContext("path", opts.ProjectDir)
	}

	if err := s.createDirectoryStructure(opts.ProjectDir); err != nil {
		return err
	}

	if err := s.createConfigFile(opts); err != nil {
		return err
	}

	if !opts.Minimal {
		if err := s.createExampleAssets(opts.ProjectDir); err != nil {
			return err
		}
	}
	return nil
}

func validTemplate(name string) bool {
	for _, t := range Templates {
		if t == name {
			return true
		}
	}
	return false
}

// createDirectoryStructure creates one folder per asset kind under the
// rooted folder.
func (s *InitService) createDirectoryStructure(projectDir string) error {
	for _, dir := range []string{"scripts", "styles", "images", "fonts"} {
		dirPath := filepath.Join(projectDir, config.DefaultRootedFolder, dir)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead,
				fmt.Sprintf("failed to create directory %s", dir), err).WithContext("path", dirPath)
		}
	}
	return nil
}

func (s *InitService) createConfigFile(opts InitOptions) error {
	path := filepath.Join(opts.ProjectDir, ConfigFileName)
	if !opts.Force {
		if _, err := os.Stat(path); err == nil {
			return pipeerrors.NewValidationError(pipeerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s already exists, use --force to overwrite it", ConfigFileName))
		} else if !errors.Is(err, os.ErrNotExist) {
			return pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead, "cannot stat configuration file", err)
		}
	}

	policies := "policies: []"
	if opts.Template == "bundled" {
		policies = "policies:\n    - combine-all-scripts\n    - combine-all-styles"
	}

	sets := "sets: []"
	if !opts.Minimal {
		sets = `sets:
    - name: site
      members:
        - site.js
        - site.css`
	}

	content := fmt.Sprintf(`server:
  port: %d
  host: %s
  gzip: true

assets:
  root: .
  rooted_folder: %s
  max_age: %s
  cache_size_mb: %d
  minify: false
  %s
  dependencies: []
  %s

development:
  enabled: false
  watch: false
  debounce: %s

logging:
  level: info
  format: text
`,
		config.DefaultPort, config.DefaultHost,
		config.DefaultRootedFolder, config.DefaultMaxAge, config.DefaultCacheSizeMB,
		indent(sets), indent(policies),
		config.DefaultDebounce)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead, "cannot write configuration file", err).
			WithContext("path", path)
	}
	return nil
}

// indent aligns continuation lines of a nested yaml block with the two
// space assets section.
func indent(block string) string {
	return strings.ReplaceAll(block, "\n", "\n  ")
}

func (s *InitService) createExampleAssets(projectDir string) error {
	files := map[string]string{
		"scripts/site.js": `(function () {
  document.documentElement.classList.add("js");
})();
`,
		"styles/site.css": `html {
  font-family: system-ui, sans-serif;
}

.js body {
  margin: 0 auto;
  max-width: 48rem;
}
`,
	}

	for rel, body := range files {
		path := filepath.Join(projectDir, config.DefaultRootedFolder, filepath.FromSlash(rel))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return pipeerrors.NewIOError(pipeerrors.ErrCodeFileRead,
				"failed to create example asset", err).WithContext("path", path)
		}
	}
	return nil
}
