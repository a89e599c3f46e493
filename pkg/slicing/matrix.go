package slicing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VariantSpec identifies one output archive
type VariantSpec struct {
	Arch  string
	Scale Scale
}

// String is the variant tag used in directory and archive names
func (v VariantSpec) String() string {
	return v.Arch + "_" + v.Scale.String()
}

// ArchScales lists the scales built for one architecture
type ArchScales struct {
	Arch   string  `yaml:"arch"`
	Scales []Scale `yaml:"scales"`
}

// Matrix is the ordered architecture -> scales table
type Matrix []ArchScales

type matrixFile struct {
	Variants Matrix `yaml:"variants"`
}

// DefaultMatrix is armv7 at 1x and 2x, arm64 at 2x and 3x
func DefaultMatrix() Matrix {
	return Matrix{
		{Arch: "armv7", Scales: []Scale{Scale1x, Scale2x}},
		{Arch: "arm64", Scales: []Scale{Scale2x, Scale3x}},
	}
}

// Specs expands the matrix in declaration order
func (m Matrix) Specs() []VariantSpec {
	var specs []VariantSpec
	for _, row := range m {
		for _, scale := range row.Scales {
			specs = append(specs, VariantSpec{Arch: row.Arch, Scale: scale})
		}
	}
	return specs
}

// Validate checks that the matrix describes at least one variant and
// contains no duplicates
func (m Matrix) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("variant matrix is empty")
	}

	seenArch := make(map[string]bool)
	for _, row := range m {
		if row.Arch == "" {
			return fmt.Errorf("variant matrix has an entry without arch")
		}
		if seenArch[row.Arch] {
			return fmt.Errorf("architecture %s listed twice", row.Arch)
		}
		seenArch[row.Arch] = true

		if len(row.Scales) == 0 {
			return fmt.Errorf("architecture %s has no scales", row.Arch)
		}
		seenScale := make(map[Scale]bool)
		for _, s := range row.Scales {
			if !s.Valid() {
				return fmt.Errorf("architecture %s has invalid scale %d", row.Arch, int(s))
			}
			if seenScale[s] {
				return fmt.Errorf("architecture %s lists scale %s twice", row.Arch, s)
			}
			seenScale[s] = true
		}
	}
	return nil
}

// ParseMatrix decodes a YAML document with a top level variants list
func ParseMatrix(data []byte) (Matrix, error) {
	var f matrixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse variant matrix: %w", err)
	}
	if err := f.Variants.Validate(); err != nil {
		return nil, err
	}
	return f.Variants, nil
}

// Encode renders the matrix in the file format ParseMatrix reads
func (m Matrix) Encode() ([]byte, error) {
	data, err := yaml.Marshal(matrixFile{Variants: m})
	if err != nil {
		return nil, fmt.Errorf("failed to encode variant matrix: %w", err)
	}
	return data, nil
}

// LoadMatrix reads a variant matrix file
func LoadMatrix(path string) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variant matrix: %w", err)
	}
	return ParseMatrix(data)
}
