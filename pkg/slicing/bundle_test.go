package slicing

import (
	"path/filepath"
	"testing"

	"howett.net/plist"
)

func TestIsExecutableBundleName(t *testing.T) {
	tests := map[string]bool{
		"Demo.app":         true,
		"Share.appex":      true,
		"Kit.framework":    true,
		"libswift.dylib":   true,
		".app":             false,
		"Demo.bundle":      false,
		"Assets.car":       false,
		"Demo.application": false,
	}
	for name, want := range tests {
		if got := IsExecutableBundleName(name); got != want {
			t.Errorf("IsExecutableBundleName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestProductName(t *testing.T) {
	if got := ProductName("/x/Payload/Demo.app"); got != "Demo" {
		t.Errorf("ProductName = %q", got)
	}
	if got := ProductName("Frameworks/Kit.framework"); got != "Kit" {
		t.Errorf("ProductName = %q", got)
	}
}

func TestFindExecutableBundlesOrder(t *testing.T) {
	root := t.TempDir()
	app := buildApp(t, root, "Demo")
	writeFile(t, filepath.Join(app, "Frameworks", "libswiftCore.dylib"), "dylib")
	writeFile(t, filepath.Join(app, "_CodeSignature", "Nested.framework", "Nested"), "ignored")

	bundles, err := FindExecutableBundles(root)
	if err != nil {
		t.Fatalf("FindExecutableBundles failed: %v", err)
	}

	want := []struct{ product, executable string }{
		{"Demo", filepath.Join(app, "Demo")},
		{"Kit", filepath.Join(app, "Frameworks", "Kit.framework", "Kit")},
		{"libswiftCore", filepath.Join(app, "Frameworks", "libswiftCore.dylib")},
		{"Share", filepath.Join(app, "PlugIns", "Share.appex", "Share")},
	}
	if len(bundles) != len(want) {
		t.Fatalf("Expected %d bundles, got %d: %+v", len(want), len(bundles), bundles)
	}
	for i, w := range want {
		if bundles[i].ProductName != w.product || bundles[i].Executable != w.executable {
			t.Errorf("bundle %d = %+v, want %s at %s", i, bundles[i], w.product, w.executable)
		}
	}
}

func TestFindExecutableBundlesUsesCFBundleExecutable(t *testing.T) {
	root := t.TempDir()
	fw := filepath.Join(root, "Payload", "Demo.app", "Frameworks", "Kit.framework")
	writePlist(t, filepath.Join(fw, "Info.plist"), map[string]interface{}{
		"CFBundleExecutable": "KitCore",
	}, plist.XMLFormat)

	bundles, err := FindExecutableBundles(root)
	if err != nil {
		t.Fatalf("FindExecutableBundles failed: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("Expected 2 bundles, got %d", len(bundles))
	}
	if got := bundles[1].Executable; got != filepath.Join(fw, "KitCore") {
		t.Errorf("Executable = %s", got)
	}
	if got := bundles[0].Executable; got != filepath.Join(root, "Payload", "Demo.app", "Demo") {
		t.Errorf("fallback Executable = %s", got)
	}
}

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name string
		root bool
		want FileClass
	}{
		{"Demo", true, ClassUntouched},
		{".DS_Store", false, ClassUntouched},
		{"AppIcon60x60@2x.png", true, ClassAppIcon},
		{"AppIcon60x60@2x.png", false, ClassImage},
		{"LaunchImage-568h@2x.png", true, ClassLaunchImage},
		{"LaunchImage-568h@2x.png", false, ClassImage},
		{"photo.JPG", false, ClassImage},
		{"banner.webp", false, ClassImage},
		{"Assets.car", true, ClassUnsupported},
		{"Info.plist", true, ClassUnsupported},
	}
	for _, tt := range tests {
		if got := ClassifyFile(tt.name, tt.root); got != tt.want {
			t.Errorf("ClassifyFile(%q, %v) = %d, want %d", tt.name, tt.root, got, tt.want)
		}
	}
}
