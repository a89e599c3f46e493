// Package machofile inspects and rewrites Mach-O executables: it lists
// the architectures of thin and universal binaries, extracts a single
// architecture slice, and reads the entitlements embedded in a code
// signature.
package machofile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

const (
	cpuArch64     = 0x01000000
	cpuTypeX86    = 7
	cpuTypeArm    = 12
	cpuSubtypeMsk = 0x00ffffff
)

// ArchName returns the lipo-style name of a CPU type/subtype pair
// (armv7, arm64, arm64e, x86_64, ...)
func ArchName(cpu types.CPU, sub types.CPUSubtype) string {
	subtype := uint32(sub) & cpuSubtypeMsk
	switch uint32(cpu) {
	case cpuTypeArm:
		switch subtype {
		case 5:
			return "armv4t"
		case 6:
			return "armv6"
		case 7:
			return "armv5"
		case 9:
			return "armv7"
		case 10:
			return "armv7f"
		case 11:
			return "armv7s"
		case 12:
			return "armv7k"
		case 14:
			return "armv6m"
		case 15:
			return "armv7m"
		case 16:
			return "armv7em"
		default:
			return "arm"
		}
	case cpuTypeArm | cpuArch64:
		if subtype == 2 {
			return "arm64e"
		}
		return "arm64"
	case cpuTypeX86:
		return "i386"
	case cpuTypeX86 | cpuArch64:
		if subtype == 8 {
			return "x86_64h"
		}
		return "x86_64"
	default:
		return fmt.Sprintf("cpu%d_%d", uint32(cpu), subtype)
	}
}

// Kind of a file judged by its magic number
type Kind int

const (
	NotMachO Kind = iota
	ThinFile
	Universal
)

// Detect reads the magic number at the start of path
func Detect(path string) Kind {
	f, err := os.Open(path)
	if err != nil {
		return NotMachO
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return NotMachO
	}
	return detectMagic(magic)
}

func detectMagic(magic []byte) Kind {
	// MH_MAGIC_64 = 0xfeedfacf (little endian: cf fa ed fe)
	// MH_MAGIC    = 0xfeedface (little endian: ce fa ed fe)
	// FAT_MAGIC   = 0xcafebabe (big endian: ca fe ba be)
	// FAT_MAGIC_64 = 0xcafebabf (big endian: ca fe ba bf)
	switch {
	case bytes.Equal(magic, []byte{0xcf, 0xfa, 0xed, 0xfe}),
		bytes.Equal(magic, []byte{0xce, 0xfa, 0xed, 0xfe}):
		return ThinFile
	case bytes.Equal(magic, []byte{0xca, 0xfe, 0xba, 0xbe}),
		bytes.Equal(magic, []byte{0xca, 0xfe, 0xba, 0xbf}):
		return Universal
	default:
		return NotMachO
	}
}

// IsMachO reports whether path starts with a thin or universal Mach-O magic
func IsMachO(path string) bool {
	return Detect(path) != NotMachO
}

// Architectures lists the architectures present in the Mach-O at path,
// in file order
func Architectures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%s is not a Mach-O file", path)
	}

	switch detectMagic(data[:4]) {
	case ThinFile:
		m, err := macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse Mach-O: %w", err)
		}
		defer m.Close()
		return []string{ArchName(m.CPU, m.SubCPU)}, nil
	case Universal:
		fat, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse as fat binary: %w", err)
		}
		defer fat.Close()

		archs := make([]string, 0, len(fat.Arches))
		for _, arch := range fat.Arches {
			archs = append(archs, ArchName(arch.CPU, arch.SubCPU))
		}
		return archs, nil
	default:
		return nil, fmt.Errorf("%s is not a Mach-O file", path)
	}
}
