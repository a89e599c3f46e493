package slicing

import (
	"path/filepath"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
	"github.com/aluedeke/go-ipaslice/pkg/machofile"
)

// BundleReport summarizes one executable bundle of an extracted archive
type BundleReport struct {
	Bundle ExecutableBundle
	// RelPath is relative to the extraction root
	RelPath string
	// Archs lists the executable's architectures; nil when unreadable
	Archs []string
	// LaunchImages lists the declared UILaunchImages entries
	LaunchImages []LaunchImage
	Err          error
}

// Inspect reports the architectures and launch images of every
// executable bundle below extractedRoot, in discovery order
func Inspect(extractedRoot string) ([]BundleReport, error) {
	bundles, err := FindExecutableBundles(extractedRoot)
	if err != nil {
		return nil, err
	}

	reports := make([]BundleReport, 0, len(bundles))
	for _, b := range bundles {
		report := BundleReport{Bundle: b, RelPath: b.Path}
		if rel, err := filepath.Rel(extractedRoot, b.Path); err == nil {
			report.RelPath = rel
		}
		report.Archs, report.Err = machofile.Architectures(b.Executable)

		if info, _, err := ipa.ReadInfoPlist(b.Path); err == nil {
			if entries, ok := info[launchImagesKey].([]interface{}); ok {
				for _, e := range entries {
					report.LaunchImages = append(report.LaunchImages, launchImageFromEntry(e))
				}
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
