package machofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/blacktop/go-macho"
)

const (
	lcCodeSignature          = 0x1d
	csMagicEmbeddedSignature = 0xfade0cc0
	csMagicEntitlements      = 0xfade7171
	csSlotEntitlements       = 5
)

// ErrNoEntitlements is returned when a binary carries a code signature
// without an entitlements blob, or no signature at all
var ErrNoEntitlements = errors.New("no embedded entitlements")

// Entitlements returns the XML entitlements plist embedded in the code
// signature of the Mach-O at path. For a universal binary the first
// slice is read.
func Entitlements(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%s is not a Mach-O file", path)
	}

	slice := data
	switch detectMagic(data[:4]) {
	case Universal:
		fat, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse as fat binary: %w", err)
		}
		if len(fat.Arches) == 0 {
			fat.Close()
			return nil, fmt.Errorf("fat binary has no architectures")
		}
		first := fat.Arches[0]
		end := uint64(first.Offset) + uint64(first.Size)
		fat.Close()
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("first slice extends beyond file")
		}
		slice = data[first.Offset:end]
	case ThinFile:
	default:
		return nil, fmt.Errorf("%s is not a Mach-O file", path)
	}

	sigOffset, sigSize, found := findCodeSignature(slice)
	if !found {
		return nil, ErrNoEntitlements
	}
	if uint64(sigOffset)+uint64(sigSize) > uint64(len(slice)) {
		return nil, fmt.Errorf("code signature extends beyond file")
	}
	return entitlementsBlob(slice[sigOffset : sigOffset+sigSize])
}

// findCodeSignature walks the load commands for LC_CODE_SIGNATURE
// without a full parse
func findCodeSignature(data []byte) (offset, size uint32, found bool) {
	if len(data) < 28 {
		return 0, 0, false
	}

	var headerSize uint32
	switch binary.LittleEndian.Uint32(data[:4]) {
	case 0xfeedfacf:
		headerSize = 32
	case 0xfeedface:
		headerSize = 28
	default:
		return 0, 0, false
	}
	if uint32(len(data)) < headerSize {
		return 0, 0, false
	}

	ncmds := binary.LittleEndian.Uint32(data[16:20])
	sizeofcmds := binary.LittleEndian.Uint32(data[20:24])
	if uint64(len(data)) < uint64(headerSize)+uint64(sizeofcmds) {
		return 0, 0, false
	}

	// every read stays inside the load command area; a command that
	// overruns it ends the walk
	end := uint64(headerSize) + uint64(sizeofcmds)
	cmdOffset := uint64(headerSize)
	for i := uint32(0); i < ncmds; i++ {
		if cmdOffset+8 > end {
			break
		}
		cmd := binary.LittleEndian.Uint32(data[cmdOffset:])
		cmdSize := uint64(binary.LittleEndian.Uint32(data[cmdOffset+4:]))
		if cmdSize < 8 || cmdOffset+cmdSize > end {
			break
		}
		if cmd == lcCodeSignature && cmdSize >= 16 {
			return binary.LittleEndian.Uint32(data[cmdOffset+8:]),
				binary.LittleEndian.Uint32(data[cmdOffset+12:]), true
		}
		cmdOffset += cmdSize
	}

	return 0, 0, false
}

// entitlementsBlob finds the entitlements slot of an embedded signature
// SuperBlob and returns its XML payload
func entitlementsBlob(sig []byte) ([]byte, error) {
	if len(sig) < 12 {
		return nil, fmt.Errorf("signature data too short")
	}
	if magic := binary.BigEndian.Uint32(sig[0:4]); magic != csMagicEmbeddedSignature {
		return nil, fmt.Errorf("invalid SuperBlob magic: 0x%x", magic)
	}

	count := binary.BigEndian.Uint32(sig[8:12])
	if uint64(len(sig)) < 12+uint64(count)*8 {
		return nil, fmt.Errorf("signature data too short for blob index")
	}

	for i := uint32(0); i < count; i++ {
		entry := 12 + i*8
		if binary.BigEndian.Uint32(sig[entry:]) != csSlotEntitlements {
			continue
		}
		blobOffset := binary.BigEndian.Uint32(sig[entry+4:])
		if uint64(blobOffset)+8 > uint64(len(sig)) {
			return nil, fmt.Errorf("entitlements blob out of range")
		}
		magic := binary.BigEndian.Uint32(sig[blobOffset:])
		length := binary.BigEndian.Uint32(sig[blobOffset+4:])
		if magic != csMagicEntitlements {
			return nil, fmt.Errorf("invalid entitlements magic: 0x%x", magic)
		}
		if length < 8 || uint64(blobOffset)+uint64(length) > uint64(len(sig)) {
			return nil, fmt.Errorf("entitlements blob out of range")
		}
		return append([]byte(nil), sig[blobOffset+8:blobOffset+length]...), nil
	}

	return nil, ErrNoEntitlements
}
