package slicing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
)

const (
	launchImagesKey    = "UILaunchImages"
	launchImageNameKey = "UILaunchImageName"
	launchImageSizeKey = "UILaunchImageSize"
)

// Size is a launch image's logical size in points
type Size struct {
	Width, Height float64
}

func (s Size) String() string {
	return fmt.Sprintf("{%s, %s}",
		strconv.FormatFloat(s.Width, 'f', -1, 64),
		strconv.FormatFloat(s.Height, 'f', -1, 64))
}

// ParseSize reads the "{320, 568}" form used by UILaunchImageSize
func ParseSize(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Size{}, fmt.Errorf("invalid size %q", s)
	}
	parts := strings.Split(trimmed[1:len(trimmed)-1], ",")
	if len(parts) != 2 {
		return Size{}, fmt.Errorf("invalid size %q", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	return Size{Width: w, Height: h}, nil
}

// reservedSizes are the launch image sizes each scale keeps
var reservedSizes = map[Scale][]Size{
	Scale1x: {{320, 480}, {320, 568}},
	Scale2x: {{320, 480}, {320, 568}, {375, 667}},
	Scale3x: {{414, 736}},
}

// ReservedSizes returns the launch image sizes kept for scale
func ReservedSizes(scale Scale) []Size {
	return append([]Size(nil), reservedSizes[scale]...)
}

func isReserved(scale Scale, size Size) bool {
	for _, r := range reservedSizes[scale] {
		if r == size {
			return true
		}
	}
	return false
}

// LaunchImage is one UILaunchImages entry
type LaunchImage struct {
	Name string
	Size string
}

func launchImageFromEntry(entry interface{}) LaunchImage {
	dict, _ := entry.(map[string]interface{})
	name, _ := dict[launchImageNameKey].(string)
	size, _ := dict[launchImageSizeKey].(string)
	return LaunchImage{Name: name, Size: size}
}

// FilterLaunchImages splits raw UILaunchImages entries into those kept
// for scale and those dropped. The decision depends on each entry's
// declared size only; an unreadable size is never reserved.
func FilterLaunchImages(entries []interface{}, scale Scale) (kept []interface{}, dropped []LaunchImage) {
	kept = make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		li := launchImageFromEntry(entry)
		size, err := ParseSize(li.Size)
		if err == nil && isReserved(scale, size) {
			kept = append(kept, entry)
			continue
		}
		dropped = append(dropped, li)
	}
	return kept, dropped
}

// LaunchImageResult describes one Info.plist edit
type LaunchImageResult struct {
	Kept    []LaunchImage
	Dropped []LaunchImage
	// Removed holds the deleted backing files
	Removed []string
	// Missing holds dropped entry names without a backing file
	Missing []string
}

// EditLaunchImages filters the UILaunchImages array of the bundle's
// Info.plist for scale, deletes the files behind dropped entries and
// writes the manifest back in the encoding it was read in. launchFiles
// are the launch image file names found in the bundle root. A nil
// result means the manifest declares no launch images.
func EditLaunchImages(bundleRoot string, scale Scale, launchFiles []string) (*LaunchImageResult, error) {
	info, format, err := ipa.ReadInfoPlist(bundleRoot)
	if err != nil {
		return nil, err
	}

	raw, ok := info[launchImagesKey]
	if !ok {
		return nil, nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is %T, not an array", launchImagesKey, raw)
	}

	kept, dropped := FilterLaunchImages(entries, scale)
	result := &LaunchImageResult{Dropped: dropped}
	for _, entry := range kept {
		result.Kept = append(result.Kept, launchImageFromEntry(entry))
	}

	files := append([]string(nil), launchFiles...)
	sort.Strings(files)

	// files still referenced by a kept entry are never deleted
	claimed := make(map[string]bool)
	for _, li := range result.Kept {
		for _, f := range files {
			if launchImageBase(f) == li.Name {
				claimed[f] = true
			}
		}
	}

	for _, li := range dropped {
		backing := backingFiles(li.Name, files, claimed)
		if len(backing) == 0 {
			result.Missing = append(result.Missing, li.Name)
			continue
		}
		for _, file := range backing {
			claimed[file] = true

			path := filepath.Join(bundleRoot, file)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to remove launch image %s: %w", file, err)
			}
			result.Removed = append(result.Removed, path)
		}
	}

	info[launchImagesKey] = kept
	if err := ipa.WriteInfoPlist(bundleRoot, info, format); err != nil {
		return nil, err
	}
	return result, nil
}

// backingFiles picks the launch image files of an entry name: every
// scale of an exact base name match, otherwise the first file starting
// with name
func backingFiles(name string, files []string, claimed map[string]bool) []string {
	if name == "" {
		return nil
	}
	var exact []string
	for _, f := range files {
		if !claimed[f] && launchImageBase(f) == name {
			exact = append(exact, f)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	for _, f := range files {
		if !claimed[f] && strings.HasPrefix(f, name) {
			return []string{f}
		}
	}
	return nil
}

// launchImageBase strips extension, device modifier and scale tag:
// LaunchImage-700-568h@2x~iphone.png -> LaunchImage-700-568h
func launchImageBase(file string) string {
	stem := strings.TrimSuffix(file, fileExtension(file))
	if i := strings.Index(stem, "~"); i >= 0 {
		stem = stem[:i]
	}
	stem = strings.TrimSuffix(stem, "@2x")
	return strings.TrimSuffix(stem, "@3x")
}
