package slicing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
	"github.com/aluedeke/go-ipaslice/pkg/machofile"
	"github.com/aluedeke/go-ipaslice/pkg/progress"
)

// Archive is the source .ipa
type Archive struct {
	Path string
	// Name is the file name without extension
	Name string
	// Ext is the extension including the dot
	Ext string
}

// NewArchive describes the archive at path
func NewArchive(path string) Archive {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return Archive{
		Path: path,
		Name: strings.TrimSuffix(base, ext),
		Ext:  ext,
	}
}

// OutputName is the file name of a variant's archive: App_arm64_3x.ipa
func (a Archive) OutputName(spec VariantSpec) string {
	return a.Name + "_" + spec.String() + a.Ext
}

// VariantBuilder produces the archive of one VariantSpec
type VariantBuilder struct {
	Archive   Archive
	Thinner   Thinner
	Signer    Signer
	Keychain  string
	OutputDir string
	// WorkDir holds the per-variant staged trees
	WorkDir string
	Sink    progress.Sink
}

// Build stages a private copy of extractedRoot, thins it to spec.Arch,
// prunes resources for spec.Scale, re-signs it with the identity of
// signing and packages it into OutputDir. The staged copy is removed
// before returning. Any failing step aborts the build; no archive is
// left behind for a failed variant.
func (b *VariantBuilder) Build(spec VariantSpec, extractedRoot string, signing *SigningContext) (string, error) {
	sink := b.sink()

	staged := filepath.Join(b.WorkDir, spec.String())
	progress.Messagef(sink, "stage", "copy to %s", staged)
	if err := ipa.CopyTree(extractedRoot, staged); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", spec, err)
	}
	defer os.RemoveAll(staged)

	bundles, err := FindExecutableBundles(staged)
	if err != nil {
		return "", fmt.Errorf("failed to find executable bundles: %w", err)
	}

	if err := b.thin(spec, bundles); err != nil {
		return "", err
	}

	progress.Messagef(sink, "prune", "slicing the images for %s", spec.Scale)
	p := newPruner(spec.Scale, bundles, sink)
	if err := p.prune(staged); err != nil {
		return "", err
	}
	progress.Messagef(sink, "prune", "removed %d resources", len(p.removed))

	if err := b.sign(bundles, extractedRoot, signing); err != nil {
		return "", err
	}

	return b.pack(spec, staged)
}

func (b *VariantBuilder) thin(spec VariantSpec, bundles []ExecutableBundle) error {
	sink := b.sink()
	progress.Messagef(sink, "thin", "slicing the binaries to %s with %s", spec.Arch, describeThinner(b.Thinner))

	for _, bundle := range bundles {
		if err := b.Thinner.Thin(bundle.Executable, spec.Arch); err != nil {
			return err
		}
		if err := verifyArchitecture(bundle.Executable, spec.Arch); err != nil {
			return err
		}
	}
	return nil
}

// verifyArchitecture checks a thinned Mach-O holds exactly arch.
// Files that are not Mach-O are not inspected.
func verifyArchitecture(executable, arch string) error {
	if !machofile.IsMachO(executable) {
		return nil
	}
	archs, err := machofile.Architectures(executable)
	if err != nil {
		return &ToolError{Kind: ErrThinning, Path: executable, Err: err}
	}
	if len(archs) != 1 || archs[0] != arch {
		return &ToolError{
			Kind: ErrThinning,
			Path: executable,
			Err:  fmt.Errorf("expected only %s after thinning, found %s", arch, strings.Join(archs, ", ")),
		}
	}
	return nil
}

// sign re-signs innermost bundles first: nested bundles must carry a
// valid signature before their container is sealed
func (b *VariantBuilder) sign(bundles []ExecutableBundle, extractedRoot string, signing *SigningContext) error {
	sink := b.sink()
	progress.Messagef(sink, "sign", "resign payload")

	identity, err := signing.Resolve(extractedRoot)
	if err != nil {
		return err
	}

	for i := len(bundles) - 1; i >= 0; i-- {
		bundle := bundles[i]
		entitlements := identity.EntitlementsFor(bundle.ProductName)
		if entitlements == "" {
			progress.Warnf(sink, "sign", "signing %s without entitlements", bundle.ProductName)
		}
		if err := b.Signer.Sign(bundle.Path, identity.Identity, entitlements, b.Keychain); err != nil {
			return err
		}
	}
	return nil
}

func (b *VariantBuilder) pack(spec VariantSpec, staged string) (string, error) {
	sink := b.sink()

	if err := os.MkdirAll(b.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out := filepath.Join(b.OutputDir, b.Archive.OutputName(spec))
	progress.Messagef(sink, "package", "zip payload to %s", out)
	if err := ipa.Repackage(staged, out); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("failed to package %s: %w", spec, err)
	}
	return out, nil
}

func (b *VariantBuilder) sink() progress.Sink {
	if b.Sink == nil {
		return progress.Discard
	}
	return b.Sink
}
