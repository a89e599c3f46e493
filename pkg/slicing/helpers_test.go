package slicing

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"howett.net/plist"

	"github.com/aluedeke/go-ipaslice/pkg/profile"
	"github.com/aluedeke/go-ipaslice/pkg/toolexec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func writePlist(t *testing.T, path string, v interface{}, format int) {
	t.Helper()
	data, err := plist.Marshal(v, format)
	if err != nil {
		t.Fatalf("Failed to marshal plist: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// listTree returns every file below root relative to it, sorted
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}

// fakeGateway records invocations and answers them from a handler
type fakeGateway struct {
	mu      sync.Mutex
	calls   []*toolexec.Result
	respond func(name string, args []string) (*toolexec.Result, error)
}

func (g *fakeGateway) Invoke(name string, args ...string) (*toolexec.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, &toolexec.Result{Name: name, Args: args})
	g.mu.Unlock()

	if g.respond != nil {
		return g.respond(name, args)
	}
	return &toolexec.Result{Name: name, Args: args}, nil
}

func (g *fakeGateway) commandLines() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	lines := make([]string, len(g.calls))
	for i, c := range g.calls {
		lines[i] = c.CommandLine()
	}
	return lines
}

// recordingThinner appends "arch:executable" per call and fails for
// executables whose base name is in fail
type recordingThinner struct {
	calls []string
	fail  map[string]bool
}

func (r *recordingThinner) Thin(executable, arch string) error {
	r.calls = append(r.calls, arch+":"+filepath.Base(executable))
	if r.fail[filepath.Base(executable)] {
		return &ToolError{
			Kind:   ErrThinning,
			Path:   executable,
			Result: &toolexec.Result{Name: LipoPath, Status: 1, Stderr: []byte("fatal error: lipo")},
		}
	}
	return nil
}

type signCall struct {
	Bundle, Identity, Entitlements, Keychain string
}

type recordingSigner struct {
	calls []signCall
	err   error
}

func (r *recordingSigner) Sign(bundlePath, identity, entitlements, keychain string) error {
	r.calls = append(r.calls, signCall{bundlePath, identity, entitlements, keychain})
	return r.err
}

// stubEntitlements answers with a fixed document per product; products
// listed in fail return an ErrEntitlementsRead
type stubEntitlements struct {
	calls []string
	fail  map[string]bool
}

func (s *stubEntitlements) ReadEntitlements(b ExecutableBundle) ([]byte, error) {
	s.calls = append(s.calls, b.ProductName)
	if s.fail[b.ProductName] {
		return nil, &ToolError{Kind: ErrEntitlementsRead, Path: b.Path, Result: &toolexec.Result{Status: 1}}
	}
	return []byte("<plist><dict><key>application-identifier</key><string>" + b.ProductName + "</string></dict></plist>"), nil
}

type countingProfiles struct {
	calls    []string
	teamName string
	err      error
}

func (c *countingProfiles) DecodeProfile(path string) (*profile.ProvisioningProfile, error) {
	c.calls = append(c.calls, path)
	if c.err != nil {
		return nil, c.err
	}
	return &profile.ProvisioningProfile{Name: "Demo", TeamName: c.teamName}, nil
}

// buildApp lays out Payload/<name>.app with nested bundles below root
func buildApp(t *testing.T, root, name string) string {
	t.Helper()
	app := filepath.Join(root, "Payload", name+".app")
	writePlist(t, filepath.Join(app, "Info.plist"), map[string]interface{}{
		"CFBundleExecutable": name,
		"CFBundleIdentifier": "com.example." + strings.ToLower(name),
	}, plist.BinaryFormat)
	writeFile(t, filepath.Join(app, name), "app-binary")
	writeFile(t, filepath.Join(app, "embedded.mobileprovision"), "profile")
	writeFile(t, filepath.Join(app, "_CodeSignature", "CodeResources"), "seal")
	writeFile(t, filepath.Join(app, "Frameworks", "Kit.framework", "Kit"), "kit-binary")
	writeFile(t, filepath.Join(app, "PlugIns", "Share.appex", "Share"), "share-binary")
	return app
}

const (
	testCPUArm   = 12
	testCPUArm64 = 12 | 0x01000000
)

// machOHeader is a minimal executable header without load commands,
// padded with zeros
func machOHeader(cpu, sub uint32, is64 bool) []byte {
	var b []byte
	if is64 {
		b = binary.LittleEndian.AppendUint32(b, 0xfeedfacf)
	} else {
		b = binary.LittleEndian.AppendUint32(b, 0xfeedface)
	}
	b = binary.LittleEndian.AppendUint32(b, cpu)
	b = binary.LittleEndian.AppendUint32(b, sub)
	b = binary.LittleEndian.AppendUint32(b, 2)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	if is64 {
		b = binary.LittleEndian.AppendUint32(b, 0)
	}
	// fat slices shorter than a 64-bit header cannot be parsed
	return append(b, make([]byte, 64)...)
}

// universalArmBinary holds an armv7 and an arm64 slice, 4K aligned
func universalArmBinary() []byte {
	slices := []struct {
		cpu, sub uint32
		data     []byte
	}{
		{testCPUArm, 9, machOHeader(testCPUArm, 9, false)},
		{testCPUArm64, 0, machOHeader(testCPUArm64, 0, true)},
	}

	const align = 12
	header := binary.BigEndian.AppendUint32(nil, 0xcafebabe)
	header = binary.BigEndian.AppendUint32(header, uint32(len(slices)))
	offset := uint32(1 << align)
	offsets := make([]uint32, len(slices))
	for i, s := range slices {
		offsets[i] = offset
		header = binary.BigEndian.AppendUint32(header, s.cpu)
		header = binary.BigEndian.AppendUint32(header, s.sub)
		header = binary.BigEndian.AppendUint32(header, offset)
		header = binary.BigEndian.AppendUint32(header, uint32(len(s.data)))
		header = binary.BigEndian.AppendUint32(header, align)
		offset += 1 << align
	}

	out := make([]byte, offset)
	copy(out, header)
	for i, s := range slices {
		copy(out[offsets[i]:], s.data)
	}
	return out
}
