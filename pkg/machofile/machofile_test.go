package machofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/blacktop/go-macho/types"
)

func TestArchName(t *testing.T) {
	tests := []struct {
		cpu  uint32
		sub  uint32
		want string
	}{
		{cpuTypeArm, 9, "armv7"},
		{cpuTypeArm, 11, "armv7s"},
		{cpuArm64, 0, "arm64"},
		{cpuArm64, 2, "arm64e"},
		{cpuArm64, 0x80000002, "arm64e"},
		{cpuTypeX86 | cpuArch64, 3, "x86_64"},
		{cpuTypeX86, 3, "i386"},
	}

	for _, tt := range tests {
		if got := ArchName(types.CPU(tt.cpu), types.CPUSubtype(tt.sub)); got != tt.want {
			t.Errorf("ArchName(%#x, %#x) = %s, want %s", tt.cpu, tt.sub, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	thin := writeBinary(t, thinMachO(cpuArm64, subArm64All, true))
	if Detect(thin) != ThinFile {
		t.Error("Expected thin Mach-O")
	}

	fat := writeBinary(t, fatMachO(fatSlice{cpuArm64, subArm64All, thinMachO(cpuArm64, subArm64All, true)}))
	if Detect(fat) != Universal {
		t.Error("Expected universal Mach-O")
	}

	text := writeBinary(t, []byte("#!/bin/sh\n"))
	if IsMachO(text) {
		t.Error("Shell script must not be detected as Mach-O")
	}
}

func TestThinUniversalBinary(t *testing.T) {
	armv7 := thinMachO(cpuTypeArm, subArmV7, false)
	arm64 := thinMachO(cpuArm64, subArm64All, true)
	path := writeBinary(t, fatMachO(
		fatSlice{cpuTypeArm, subArmV7, armv7},
		fatSlice{cpuArm64, subArm64All, arm64},
	))

	archs, err := Architectures(path)
	if err != nil {
		t.Fatalf("Architectures failed: %v", err)
	}
	if !reflect.DeepEqual(archs, []string{"armv7", "arm64"}) {
		t.Fatalf("Unexpected architectures %v", archs)
	}

	if err := Thin(path, "arm64"); err != nil {
		t.Fatalf("Thin failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, arm64) {
		t.Errorf("Thinned file should equal the arm64 slice")
	}

	archs, err = Architectures(path)
	if err != nil {
		t.Fatalf("Architectures after thin failed: %v", err)
	}
	if !reflect.DeepEqual(archs, []string{"arm64"}) {
		t.Errorf("Expected only arm64 after thinning, got %v", archs)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Error("Thinning must keep the executable bit")
	}
}

func TestThinMissingArchitecture(t *testing.T) {
	path := writeBinary(t, fatMachO(
		fatSlice{cpuArm64, subArm64All, thinMachO(cpuArm64, subArm64All, true)},
	))

	if err := Thin(path, "armv7"); err == nil {
		t.Fatal("Expected error when the requested architecture is absent")
	}
}

func TestThinAlreadyThin(t *testing.T) {
	path := writeBinary(t, thinMachO(cpuArm64, subArm64All, true))

	if err := Thin(path, "arm64"); err != nil {
		t.Errorf("Thinning a matching thin binary should be a no-op: %v", err)
	}
	if err := Thin(path, "armv7"); err == nil {
		t.Error("Thinning a thin binary to another architecture should fail")
	}
}

func TestThinNotMachO(t *testing.T) {
	path := writeBinary(t, []byte("not a binary"))
	if err := Thin(path, "arm64"); err == nil {
		t.Error("Expected error for non Mach-O input")
	}
}

func signatureWithEntitlements(xml []byte) []byte {
	blob := binary.BigEndian.AppendUint32(nil, csMagicEntitlements)
	blob = binary.BigEndian.AppendUint32(blob, uint32(8+len(xml)))
	blob = append(blob, xml...)

	sig := binary.BigEndian.AppendUint32(nil, csMagicEmbeddedSignature)
	sig = binary.BigEndian.AppendUint32(sig, uint32(12+8+len(blob)))
	sig = binary.BigEndian.AppendUint32(sig, 1)
	sig = binary.BigEndian.AppendUint32(sig, csSlotEntitlements)
	sig = binary.BigEndian.AppendUint32(sig, 20)
	return append(sig, blob...)
}

func codeSignatureCommand(offset, size uint32) []byte {
	cmd := binary.LittleEndian.AppendUint32(nil, lcCodeSignature)
	cmd = binary.LittleEndian.AppendUint32(cmd, 16)
	cmd = binary.LittleEndian.AppendUint32(cmd, offset)
	return binary.LittleEndian.AppendUint32(cmd, size)
}

func TestEntitlements(t *testing.T) {
	xml := []byte(`<?xml version="1.0" encoding="UTF-8"?><plist version="1.0"><dict><key>get-task-allow</key><false/></dict></plist>`)
	sig := signatureWithEntitlements(xml)

	header := thinMachO(cpuArm64, subArm64All, true, codeSignatureCommand(0, 0))
	offset := uint32(len(header))
	data := thinMachO(cpuArm64, subArm64All, true, codeSignatureCommand(offset, uint32(len(sig))))
	data = append(data, sig...)

	got, err := Entitlements(writeBinary(t, data))
	if err != nil {
		t.Fatalf("Entitlements failed: %v", err)
	}
	if !bytes.Equal(got, xml) {
		t.Errorf("Unexpected entitlements %q", got)
	}
}

func TestEntitlementsUnsigned(t *testing.T) {
	_, err := Entitlements(writeBinary(t, thinMachO(cpuArm64, subArm64All, true)))
	if !errors.Is(err, ErrNoEntitlements) {
		t.Errorf("Expected ErrNoEntitlements, got %v", err)
	}
}

func TestEntitlementsTruncatedLoadCommand(t *testing.T) {
	// LC_CODE_SIGNATURE claims 16 bytes but the load command area holds 8
	truncated := binary.LittleEndian.AppendUint32(nil, lcCodeSignature)
	truncated = binary.LittleEndian.AppendUint32(truncated, 16)

	// a command size that would wrap a 32-bit offset
	wrapping := binary.LittleEndian.AppendUint32(nil, 0x19)
	wrapping = binary.LittleEndian.AppendUint32(wrapping, 0xfffffff8)

	tests := map[string][]byte{
		"truncated": thinMachO(cpuArm64, subArm64All, true, truncated),
		"wrapping":  thinMachO(cpuArm64, subArm64All, true, wrapping, codeSignatureCommand(0, 0)),
	}
	for name, data := range tests {
		unpadded := data[:len(data)-fixturePadding]
		if _, _, found := findCodeSignature(unpadded); found {
			t.Errorf("%s: found a code signature in a malformed header", name)
		}

		_, err := Entitlements(writeBinary(t, unpadded))
		if !errors.Is(err, ErrNoEntitlements) {
			t.Errorf("%s: expected ErrNoEntitlements, got %v", name, err)
		}
	}
}
