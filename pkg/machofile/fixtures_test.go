package machofile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	cpuArm64    = cpuTypeArm | cpuArch64
	subArmV7    = 9
	subArm64All = 0

	fixturePadding = 64
)

// thinMachO builds a minimal Mach-O header with the given load commands
func thinMachO(cpu, sub uint32, is64 bool, cmds ...[]byte) []byte {
	var sizeofcmds uint32
	for _, c := range cmds {
		sizeofcmds += uint32(len(c))
	}

	var b []byte
	if is64 {
		b = binary.LittleEndian.AppendUint32(b, 0xfeedfacf)
	} else {
		b = binary.LittleEndian.AppendUint32(b, 0xfeedface)
	}
	b = binary.LittleEndian.AppendUint32(b, cpu)
	b = binary.LittleEndian.AppendUint32(b, sub)
	b = binary.LittleEndian.AppendUint32(b, 2) // MH_EXECUTE
	b = binary.LittleEndian.AppendUint32(b, uint32(len(cmds)))
	b = binary.LittleEndian.AppendUint32(b, sizeofcmds)
	b = binary.LittleEndian.AppendUint32(b, 0)
	if is64 {
		b = binary.LittleEndian.AppendUint32(b, 0)
	}
	for _, c := range cmds {
		b = append(b, c...)
	}
	// go-macho reads a fat slice through a reader bounded by its size,
	// so a slice must extend past the largest header
	return append(b, make([]byte, fixturePadding)...)
}

type fatSlice struct {
	cpu, sub uint32
	data     []byte
}

// fatMachO wraps slices in a FAT_MAGIC container, each 4K aligned
func fatMachO(slices ...fatSlice) []byte {
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
		size := uint32(len(s.data))
		offset += (size + (1<<align - 1)) &^ (1<<align - 1)
	}

	out := make([]byte, offset)
	copy(out, header)
	for i, s := range slices {
		copy(out[offsets[i]:], s.data)
	}
	return out
}

func writeBinary(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Demo")
	if err := os.WriteFile(path, data, 0755); err != nil {
		t.Fatalf("Failed to write binary: %v", err)
	}
	return path
}
