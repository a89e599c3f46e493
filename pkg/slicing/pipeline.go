package slicing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
	"github.com/aluedeke/go-ipaslice/pkg/progress"
	"github.com/aluedeke/go-ipaslice/pkg/toolexec"
)

// Options configures a Pipeline
type Options struct {
	// OutputDir receives the variant archives
	OutputDir string
	// Keychain is passed to codesign --keychain
	Keychain string
	// Matrix defaults to DefaultMatrix
	Matrix Matrix
	// WorkDir is the parent of the scratch directory, os.TempDir if empty
	WorkDir string
	// Identity overrides the identity derived from the provisioning profile
	Identity string
	// ProfilePath replaces the embedded provisioning profile
	ProfilePath string
	// Native thins, reads entitlements and decodes profiles in process
	// instead of calling lipo, codesign -d and security
	Native bool
}

// Pipeline extracts an archive once and builds every variant of its
// matrix in order
type Pipeline struct {
	Options

	Thinner      Thinner
	Signer       Signer
	Entitlements EntitlementsReader
	Profiles     ProfileDecoder
	Sink         progress.Sink

	// Extract unpacks the archive, ipa.Extract by default
	Extract func(archivePath, destDir string) error
}

// NewPipeline wires the collaborators for opts. Signing always goes
// through codesign on gw.
func NewPipeline(gw toolexec.Gateway, opts Options) *Pipeline {
	p := &Pipeline{
		Options: opts,
		Signer:  CodesignSigner{Gateway: gw},
		Extract: ipa.Extract,
	}
	if opts.Native {
		p.Thinner = NativeThinner{}
		p.Entitlements = NativeEntitlementsReader{}
		p.Profiles = EmbeddedProfileDecoder{}
	} else {
		p.Thinner = LipoThinner{Gateway: gw}
		p.Entitlements = CodesignEntitlementsReader{Gateway: gw}
		p.Profiles = SecurityProfileDecoder{Gateway: gw}
	}
	return p
}

// Run produces one archive per variant and returns their paths in
// matrix order. The first failing variant aborts the run; archives
// written before it stay in OutputDir. The scratch directory is
// removed in every case.
func (p *Pipeline) Run(archivePath string) ([]string, error) {
	sink := p.sink()

	matrix := p.Matrix
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	if err := matrix.Validate(); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp(p.WorkDir, "ipa-slice-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		progress.Messagef(sink, "cleanup", "clean tmp directories")
		os.RemoveAll(scratch)
	}()

	extracted := filepath.Join(scratch, "extracted")
	tmp := filepath.Join(scratch, "tmp")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}

	progress.Messagef(sink, "extract", "extract %s", archivePath)
	extract := p.Extract
	if extract == nil {
		extract = ipa.Extract
	}
	if err := extract(archivePath, extracted); err != nil {
		progress.Errorf(sink, "extract", "extract failure")
		return nil, &ToolError{Kind: ErrExtraction, Path: archivePath, Err: err}
	}

	signing := &SigningContext{
		Entitlements:     p.Entitlements,
		Profiles:         p.Profiles,
		ScratchDir:       tmp,
		IdentityOverride: p.Identity,
		ProfilePath:      p.ProfilePath,
		Sink:             sink,
	}
	builder := &VariantBuilder{
		Archive:   NewArchive(archivePath),
		Thinner:   p.Thinner,
		Signer:    p.Signer,
		Keychain:  p.Keychain,
		OutputDir: p.OutputDir,
		WorkDir:   tmp,
		Sink:      sink,
	}

	var outputs []string
	for _, spec := range matrix.Specs() {
		progress.Messagef(sink, "variant", "processing %s & %s", spec.Arch, spec.Scale)
		out, err := builder.Build(spec, extracted, signing)
		if err != nil {
			progress.Errorf(sink, "variant", "%s failed: %v", spec, err)
			return outputs, fmt.Errorf("variant %s: %w", spec, err)
		}
		outputs = append(outputs, out)
	}

	progress.Messagef(sink, "done", "slicing success, %d archives", len(outputs))
	return outputs, nil
}

func (p *Pipeline) sink() progress.Sink {
	if p.Sink == nil {
		return progress.Discard
	}
	return p.Sink
}
