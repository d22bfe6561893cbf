package zedupdate

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// Signature is a magic number found at Offset in a file.
type Signature struct {
	Name   string
	Offset int
	Magic  []byte
}

var (
	// ExecutableSignatures identify native executables: PE (Windows), ELF (Linux) and Mach-O (macOS).
	ExecutableSignatures = []Signature{
		{Name: "pe", Magic: []byte("MZ")},
		{Name: "elf", Magic: []byte("\x7fELF")},
		{Name: "mach-o", Magic: []byte{0xfe, 0xed, 0xfa, 0xce}},
		{Name: "mach-o", Magic: []byte{0xfe, 0xed, 0xfa, 0xcf}},
		{Name: "mach-o", Magic: []byte{0xce, 0xfa, 0xed, 0xfe}},
		{Name: "mach-o", Magic: []byte{0xcf, 0xfa, 0xed, 0xfe}},
		{Name: "mach-o-universal", Magic: []byte{0xca, 0xfe, 0xba, 0xbe}},
	}

	// ArchiveSignatures identify the archive formats the installer can extract.
	ArchiveSignatures = []Signature{
		{Name: "zip", Magic: []byte("PK\x03\x04")},
		{Name: "gzip", Magic: []byte{0x1f, 0x8b}},
		{Name: "xz", Magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
		{Name: "zstd", Magic: []byte{0x28, 0xb5, 0x2f, 0xfd}},
		{Name: "bzip2", Magic: []byte("BZh")},
		{Name: "tar", Offset: 257, Magic: []byte("ustar")},
	}
)

const headerSize = 512

// MatchSignature returns the first signature of the list found in header.
func MatchSignature(header []byte, signatures []Signature) (Signature, bool) {
	for _, signature := range signatures {
		end := signature.Offset + len(signature.Magic)
		if len(header) >= end && bytes.Equal(header[signature.Offset:end], signature.Magic) {
			return signature, true
		}
	}
	return Signature{}, false
}

// readHeader returns the first bytes of a file (fewer for a short file).
func readHeader(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:n], nil
}

// FileSignature returns the signature of the file at path, looking for executables then archives.
func FileSignature(path string) (Signature, bool, error) {
	header, err := readHeader(path)
	if err != nil {
		return Signature{}, false, err
	}
	if signature, ok := MatchSignature(header, ExecutableSignatures); ok {
		return signature, true, nil
	}
	signature, ok := MatchSignature(header, ArchiveSignatures)
	return signature, ok, nil
}

func isExecutableSignature(signature Signature) bool {
	for _, executable := range ExecutableSignatures {
		if executable.Name == signature.Name {
			return true
		}
	}
	return false
}
