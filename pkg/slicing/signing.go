package slicing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
	"github.com/aluedeke/go-ipaslice/pkg/progress"
)

const entitlementsSuffix = "_entitlements.plist"

// SigningIdentity is everything needed to re-sign the bundles of one
// archive. It is read only once resolved.
type SigningIdentity struct {
	// Identity is the codesign -s argument
	Identity string
	// AppName is the primary application's name without .app
	AppName string
	// Entitlements maps a product name to its entitlements file
	Entitlements map[string]string
}

// EntitlementsFor returns the entitlements file of product, or "" when
// none could be captured
func (s *SigningIdentity) EntitlementsFor(product string) string {
	return s.Entitlements[product]
}

// SigningContext resolves the SigningIdentity of an archive at most
// once. The pipeline is sequential, so the cache is not synchronized.
type SigningContext struct {
	Entitlements EntitlementsReader
	Profiles     ProfileDecoder
	// ScratchDir receives the <product>_entitlements.plist files
	ScratchDir string
	// IdentityOverride skips profile decoding when set
	IdentityOverride string
	// ProfilePath replaces the app's embedded.mobileprovision when set
	ProfilePath string
	Sink        progress.Sink

	resolved *SigningIdentity
}

// Resolved returns the cached identity, nil before the first Resolve
func (c *SigningContext) Resolved() *SigningIdentity {
	return c.resolved
}

// Resolve computes the identity from the unpruned extraction on the
// first call and returns the cached value afterwards.
//
// Entitlements are captured for every executable bundle. A failure to
// read one is reported as an error event and that product is signed
// without entitlements; a failure to decode the provisioning profile
// is returned.
func (c *SigningContext) Resolve(extractedRoot string) (*SigningIdentity, error) {
	if c.resolved != nil {
		return c.resolved, nil
	}
	sink := c.sink()

	appPath, err := ipa.FindAppBundle(extractedRoot)
	if err != nil {
		return nil, err
	}

	identity := &SigningIdentity{
		AppName:      strings.TrimSuffix(filepath.Base(appPath), ".app"),
		Entitlements: make(map[string]string),
	}

	bundles, err := FindExecutableBundles(extractedRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to find executable bundles: %w", err)
	}
	if err := os.MkdirAll(c.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	for _, b := range bundles {
		data, err := c.Entitlements.ReadEntitlements(b)
		if err != nil {
			progress.Errorf(sink, "entitlements", "%v", err)
			continue
		}
		if len(bytes.TrimSpace(data)) == 0 {
			progress.Messagef(sink, "entitlements", "%s has no entitlements", b.ProductName)
			continue
		}

		path := filepath.Join(c.ScratchDir, b.ProductName+entitlementsSuffix)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write entitlements for %s: %w", b.ProductName, err)
		}
		identity.Entitlements[b.ProductName] = path
	}

	if c.IdentityOverride != "" {
		identity.Identity = c.IdentityOverride
	} else {
		profilePath := c.ProfilePath
		if profilePath == "" {
			profilePath = embeddedProfilePath(appPath)
		}
		p, err := c.Profiles.DecodeProfile(profilePath)
		if err != nil {
			return nil, err
		}
		id, err := p.Identity()
		if err != nil {
			return nil, &ToolError{Kind: ErrProfileDecode, Path: profilePath, Err: err}
		}
		identity.Identity = id
	}

	progress.Messagef(sink, "sign", "signing identity: %s", identity.Identity)
	c.resolved = identity
	return identity, nil
}

func (c *SigningContext) sink() progress.Sink {
	if c.Sink == nil {
		return progress.Discard
	}
	return c.Sink
}
