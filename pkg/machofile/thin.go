package machofile

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/blacktop/go-macho"
)

// Thin rewrites the Mach-O at path in place so that it only contains
// arch. A universal binary is replaced by its arch slice; a thin binary
// is left untouched when it already is arch and rejected otherwise.
func Thin(path, arch string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < 4 {
		return fmt.Errorf("%s is not a Mach-O file", path)
	}

	switch detectMagic(data[:4]) {
	case ThinFile:
		m, err := macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to parse Mach-O: %w", err)
		}
		have := ArchName(m.CPU, m.SubCPU)
		m.Close()
		if have != arch {
			return fmt.Errorf("%s is a thin %s binary, cannot thin to %s", path, have, arch)
		}
		return nil
	case Universal:
		slice, err := extractSlice(data, arch)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return os.WriteFile(path, slice, info.Mode().Perm())
	default:
		return fmt.Errorf("%s is not a Mach-O file", path)
	}
}

func extractSlice(data []byte, arch string) ([]byte, error) {
	fat, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse as fat binary: %w", err)
	}
	defer fat.Close()

	present := make([]string, 0, len(fat.Arches))
	for _, a := range fat.Arches {
		name := ArchName(a.CPU, a.SubCPU)
		if name != arch {
			present = append(present, name)
			continue
		}
		end := uint64(a.Offset) + uint64(a.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%s slice extends beyond file", arch)
		}
		slice := make([]byte, a.Size)
		copy(slice, data[a.Offset:end])
		return slice, nil
	}

	return nil, fmt.Errorf("fat file does not contain %s (has %s)", arch, strings.Join(present, ", "))
}
