package slicing

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-ipaslice/pkg/progress"
)

// pruner removes the resources one variant does not need from a staged tree
type pruner struct {
	scale       Scale
	bundleRoots map[string]bool
	sink        progress.Sink

	// unsupported extensions already reported for this variant
	unsupported map[string]bool
	removed     []string
}

func newPruner(scale Scale, bundles []ExecutableBundle, sink progress.Sink) *pruner {
	roots := make(map[string]bool, len(bundles))
	for _, b := range bundles {
		roots[b.Path] = true
	}
	return &pruner{
		scale:       scale,
		bundleRoots: roots,
		sink:        sink,
		unsupported: make(map[string]bool),
	}
}

// prune visits every directory below root. Signature directories are
// deleted: the old signature is invalid once content changes.
func (p *pruner) prune(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if IsCodeSignatureDir(d.Name()) {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			return filepath.SkipDir
		}
		return p.pruneDirectory(path)
	})
}

func (p *pruner) pruneDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	isBundleRoot := p.bundleRoots[dir]

	var images, launchImages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		switch ClassifyFile(name, isBundleRoot) {
		case ClassAppIcon:
			progress.Messagef(p.sink, "prune", "skip app icon file: %s", name)
		case ClassLaunchImage:
			launchImages = append(launchImages, name)
		case ClassImage:
			images = append(images, name)
		case ClassUnsupported:
			ext := fileExtension(name)
			if !p.unsupported[ext] {
				p.unsupported[ext] = true
				progress.Warnf(p.sink, "prune", "unsupported resource extension: %s", ext)
			}
		}
	}

	for _, name := range SelectRemovals(images, p.scale) {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		p.removed = append(p.removed, path)
	}

	if !isBundleRoot {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, "Info.plist")); os.IsNotExist(err) {
		return nil
	}

	result, err := EditLaunchImages(dir, p.scale, launchImages)
	if err != nil {
		return &ToolError{Kind: ErrManifest, Path: dir, Err: err}
	}
	if result == nil {
		return nil
	}
	progress.Messagef(p.sink, "launch-images", "%s: kept %d, dropped %d launch images",
		filepath.Base(dir), len(result.Kept), len(result.Dropped))
	for _, name := range result.Missing {
		progress.Warnf(p.sink, "launch-images", "%s: no file for dropped launch image %s", filepath.Base(dir), name)
	}
	p.removed = append(p.removed, result.Removed...)
	return nil
}
