// Package slicing splits a universal, multi-resolution .ipa into
// per-device variants.
//
// Each variant is one (architecture, scale) cell of a Matrix. For every
// cell the extracted archive is copied, its executables are thinned to
// the one architecture, image resources are reduced to the single scale
// that best serves the target, launch images are filtered in the
// bundle's Info.plist, and every executable bundle is re-signed before
// the tree is zipped again.
//
// # Basic Usage
//
//	p := slicing.NewPipeline(toolexec.Exec{}, slicing.Options{
//	    OutputDir: "output",
//	    Keychain:  "login.keychain",
//	})
//	archives, err := p.Run("App.ipa")
//
// Variants are built one after another. The signing identity and the
// per-product entitlements are resolved once, on the first variant, by
// a SigningContext owned by the Pipeline.
package slicing
