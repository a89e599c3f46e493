package slicing

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluedeke/go-ipaslice/pkg/ipa"
)

const (
	codeSignatureDir  = "_CodeSignature"
	appIconPrefix     = "AppIcon"
	launchImagePrefix = "LaunchImage"
)

// executableSuffixes identify executable containers by name
var executableSuffixes = []string{".app", ".appex", ".framework", ".dylib"}

// imageExtensions are the resource types eligible for scale pruning
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".webp": true,
	".bmp":  true,
}

// ExecutableBundle is a directory (or a bare .dylib) whose executable
// must be thinned and whose signature must be re-applied
type ExecutableBundle struct {
	Path        string
	ProductName string
	Executable  string
}

// IsExecutableBundleName reports whether a path's base name marks an
// executable container: .app, .appex, .framework or .dylib with a
// non-empty product name
func IsExecutableBundleName(name string) bool {
	for _, suffix := range executableSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}

// IsCodeSignatureDir reports whether name is a signature metadata directory
func IsCodeSignatureDir(name string) bool {
	return name == codeSignatureDir
}

// ProductName strips the container suffix: Foo.framework -> Foo
func ProductName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FindExecutableBundles lists the executable bundles below root in
// discovery order: containers before the bundles nested in them
func FindExecutableBundles(root string) ([]ExecutableBundle, error) {
	var bundles []ExecutableBundle

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && IsCodeSignatureDir(d.Name()) {
			return filepath.SkipDir
		}
		if !IsExecutableBundleName(d.Name()) {
			return nil
		}

		switch {
		case d.IsDir():
			bundles = append(bundles, newDirectoryBundle(path))
		case strings.HasSuffix(d.Name(), ".dylib") && d.Type().IsRegular():
			bundles = append(bundles, ExecutableBundle{
				Path:        path,
				ProductName: ProductName(path),
				Executable:  path,
			})
		}
		return nil
	})

	return bundles, err
}

func newDirectoryBundle(path string) ExecutableBundle {
	product := ProductName(path)
	executable := filepath.Join(path, product)
	if name, err := ipa.GetAppExecutableName(path); err == nil && !strings.Contains(name, string(os.PathSeparator)) {
		executable = filepath.Join(path, name)
	}
	return ExecutableBundle{
		Path:        path,
		ProductName: product,
		Executable:  executable,
	}
}

// FileClass is how the pruning step treats a file
type FileClass int

const (
	// ClassUntouched files are never considered (no extension)
	ClassUntouched FileClass = iota
	// ClassUnsupported files have an extension outside the image allow-list
	ClassUnsupported
	// ClassAppIcon files live in a bundle root and are never pruned
	ClassAppIcon
	// ClassLaunchImage files live in a bundle root and follow Info.plist
	ClassLaunchImage
	// ClassImage files are grouped by scale and deduplicated
	ClassImage
)

// ClassifyFile applies the naming convention to a file name. inBundleRoot
// is true when the file sits directly in an executable bundle directory.
func ClassifyFile(name string, inBundleRoot bool) FileClass {
	ext := fileExtension(name)
	if ext == "" {
		return ClassUntouched
	}
	if inBundleRoot && strings.HasPrefix(name, appIconPrefix) {
		return ClassAppIcon
	}
	if inBundleRoot && strings.HasPrefix(name, launchImagePrefix) {
		return ClassLaunchImage
	}
	if imageExtensions[strings.ToLower(ext)] {
		return ClassImage
	}
	return ClassUnsupported
}

// fileExtension is filepath.Ext except that dot files such as
// .DS_Store have no extension
func fileExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return ext
}
