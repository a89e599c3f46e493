package slicing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluedeke/go-ipaslice/pkg/machofile"
	"github.com/aluedeke/go-ipaslice/pkg/profile"
	"github.com/aluedeke/go-ipaslice/pkg/toolexec"
)

// Default locations of the Xcode command line tools
const (
	LipoPath     = "/usr/bin/lipo"
	CodesignPath = "/usr/bin/codesign"
	SecurityPath = "/usr/bin/security"
)

// Thinner reduces a universal executable to one architecture in place
type Thinner interface {
	Thin(executable, arch string) error
}

// Signer applies identity, entitlements and keychain to a bundle.
// entitlements may be empty, in which case none are passed.
type Signer interface {
	Sign(bundlePath, identity, entitlements, keychain string) error
}

// EntitlementsReader dumps the entitlements of an existing signature
type EntitlementsReader interface {
	ReadEntitlements(bundle ExecutableBundle) ([]byte, error)
}

// ProfileDecoder decodes a .mobileprovision file
type ProfileDecoder interface {
	DecodeProfile(path string) (*profile.ProvisioningProfile, error)
}

func toolPath(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}

// LipoThinner thins with `lipo <exe> -thin <arch> -output <exe>`
type LipoThinner struct {
	Gateway toolexec.Gateway
	Path    string
}

func (l LipoThinner) Thin(executable, arch string) error {
	res, err := l.Gateway.Invoke(toolPath(l.Path, LipoPath), executable, "-thin", arch, "-output", executable)
	return toolFailure(ErrThinning, executable, res, err)
}

// CodesignSigner signs with `codesign --continue -f -s <identity> ...`
type CodesignSigner struct {
	Gateway toolexec.Gateway
	Path    string
}

func (c CodesignSigner) Sign(bundlePath, identity, entitlements, keychain string) error {
	args := []string{"--continue", "-f", "-s", identity}
	if entitlements != "" {
		args = append(args, "--entitlements", entitlements)
	}
	if keychain != "" {
		args = append(args, "--keychain", keychain)
	}
	args = append(args, bundlePath)

	res, err := c.Gateway.Invoke(toolPath(c.Path, CodesignPath), args...)
	return toolFailure(ErrSigning, bundlePath, res, err)
}

// CodesignEntitlementsReader dumps with `codesign -d --entitlements :- <bundle>`
type CodesignEntitlementsReader struct {
	Gateway toolexec.Gateway
	Path    string
}

func (c CodesignEntitlementsReader) ReadEntitlements(bundle ExecutableBundle) ([]byte, error) {
	res, err := c.Gateway.Invoke(toolPath(c.Path, CodesignPath), "-d", "--entitlements", ":-", bundle.Path)
	if ferr := toolFailure(ErrEntitlementsRead, bundle.Path, res, err); ferr != nil {
		return nil, ferr
	}
	return res.Stdout, nil
}

// SecurityProfileDecoder decodes with `security cms -D -i <profile>`
type SecurityProfileDecoder struct {
	Gateway toolexec.Gateway
	Path    string
}

func (s SecurityProfileDecoder) DecodeProfile(path string) (*profile.ProvisioningProfile, error) {
	res, err := s.Gateway.Invoke(toolPath(s.Path, SecurityPath), "cms", "-D", "-i", path)
	if ferr := toolFailure(ErrProfileDecode, path, res, err); ferr != nil {
		return nil, ferr
	}
	p, err := profile.ParsePlist(res.Stdout)
	if err != nil {
		return nil, &ToolError{Kind: ErrProfileDecode, Path: path, Err: err}
	}
	return p, nil
}

// NativeThinner extracts the architecture slice without lipo
type NativeThinner struct{}

func (NativeThinner) Thin(executable, arch string) error {
	return stepError(ErrThinning, executable, machofile.Thin(executable, arch))
}

// NativeEntitlementsReader reads the entitlements blob of the bundle's
// executable without codesign. An unsigned executable yields no
// entitlements and no error.
type NativeEntitlementsReader struct{}

func (NativeEntitlementsReader) ReadEntitlements(bundle ExecutableBundle) ([]byte, error) {
	data, err := machofile.Entitlements(bundle.Executable)
	if errors.Is(err, machofile.ErrNoEntitlements) {
		return nil, nil
	}
	if err != nil {
		return nil, &ToolError{Kind: ErrEntitlementsRead, Path: bundle.Path, Err: err}
	}
	return data, nil
}

// EmbeddedProfileDecoder unwraps the CMS container in process
type EmbeddedProfileDecoder struct{}

func (EmbeddedProfileDecoder) DecodeProfile(path string) (*profile.ProvisioningProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ToolError{Kind: ErrProfileDecode, Path: path, Err: err}
	}
	p, err := profile.Parse(data)
	if err != nil {
		return nil, &ToolError{Kind: ErrProfileDecode, Path: path, Err: err}
	}
	return p, nil
}

// embeddedProfilePath is where an app bundle carries its profile
func embeddedProfilePath(appPath string) string {
	return filepath.Join(appPath, "embedded.mobileprovision")
}

// describeThinner names the thinning backend for progress messages
func describeThinner(t Thinner) string {
	switch v := t.(type) {
	case LipoThinner:
		return toolPath(v.Path, LipoPath)
	case NativeThinner:
		return "native Mach-O thinning"
	default:
		return fmt.Sprintf("%T", t)
	}
}
