// Package scanner discovers asset files below the application root and every
// package root.
//
// Roots are walked concurrently. Each file whose name maps to a known mime
// type is reported with its path relative to the root and the provenance of
// the root, which the file graph uses for precedence.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/assetpipe/internal/assets"
	"github.com/conneroisu/assetpipe/internal/logging"
)

// Root is a directory contributing assets.
type Root struct {
	// Provenance is assets.ApplicationProvenance or a package name.
	Provenance string
	Path       string
}

// AssetScanner walks roots for asset files.
type AssetScanner struct {
	mimes   *assets.MimeTypes
	exclude map[string]bool
	logger  logging.Logger
	workers int
}

// NewAssetScanner creates a scanner. Directories named in exclude are never
// entered.
func NewAssetScanner(mimes *assets.MimeTypes, exclude []string, logger logging.Logger) *AssetScanner {
	ex := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		ex[e] = true
	}

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &AssetScanner{
		mimes:   mimes,
		exclude: ex,
		logger:  logging.OrNop(logger).WithComponent("scanner"),
		workers: workers,
	}
}

// Scan walks every root and returns the discovered files in root order, each
// root's files in walk order.
func (s *AssetScanner) Scan(ctx context.Context, roots []Root) ([]assets.DiscoveredFile, error) {
	results := make([][]assets.DiscoveredFile, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			files, err := s.ScanRoot(ctx, root)
			if err != nil {
				return err
			}
			results[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []assets.DiscoveredFile
	for _, files := range results {
		all = append(all, files...)
	}
	return all, nil
}

// ScanRoot walks a single root.
func (s *AssetScanner) ScanRoot(ctx context.Context, root Root) ([]assets.DiscoveredFile, error) {
	base, err := filepath.Abs(filepath.Clean(root.Path))
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root.Path, err)
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("scanning %s root: %w", root.Provenance, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s root: %s is not a directory", root.Provenance, root.Path)
	}

	var files []assets.DiscoveredFile
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn(ctx, err, "Skipping unreadable path", "path", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path != base && (s.exclude[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		if s.mimes.ByFileName(name) == nil {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		files = append(files, assets.DiscoveredFile{
			RelativePath: filepath.ToSlash(rel),
			Provenance:   root.Provenance,
			FullPath:     path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "Scanned asset root",
		"provenance", root.Provenance,
		"path", base,
		"files", len(files))
	return files, nil
}
