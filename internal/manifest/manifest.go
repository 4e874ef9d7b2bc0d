package manifest

import (
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Ensure SHA512 is linked in for checksum calculation.
	_ "crypto/sha512"
)

// ChecksumFunction is used to fingerprint every payload embedded in a bundle.
const ChecksumFunction crypto.Hash = crypto.SHA512

var (
	errEmptyManifest      = errors.New("manifest contains no files")
	errHashUnavailable    = errors.New("hash function unavailable")
	errNoExecutable       = errors.New("manifest must designate exactly one executable helper script")
	errAbsolutePath       = errors.New("manifest paths must be relative")
	errPathEscapesRoot    = errors.New("manifest path escapes the asset root")
	errPathUnencodable    = errors.New("manifest paths must not contain whitespace or quotes")
	errDuplicatePath      = errors.New("duplicate manifest path")
	errMultipleExecutable = errors.New("manifest designates more than one executable helper script")
)

// SourceFile is one manifest entry: a relative path under the asset root and
// whether the installed copy must carry the executable bit.
type SourceFile struct {
	// Path is the file location relative to the asset root.
	// It is also the install location relative to the target directory.
	Path string `yaml:"path"`
	// Executable marks the designated helper script.
	Executable bool `yaml:"executable,omitempty"`
}

// Manifest is the ordered list of files to embed.
// Order is significant: it fixes emission order in the bundle and creation
// order during installation, keeping repeated builds diffable.
type Manifest []SourceFile

// Default returns the built-in sandbox kit manifest.
func Default() Manifest {
	return Manifest{
		{Path: "sandbox.yaml"},
		{Path: "run-sandbox.sh", Executable: true},
		{Path: "README.md"},
	}
}

// Payload is a manifest entry after its content has been read.
// Immutable once loaded; identity is the path.
type Payload struct {
	SourceFile

	// Content is the raw file content, embedded byte for byte.
	Content []byte
	// Checksum is the SHA-512 digest of Content.
	Checksum []byte
	// Token is the terminator line bounding the embedded content.
	// Guaranteed not to occur inside Content.
	Token string
}

// MissingFilesError reports every absent manifest file in one shot so the
// operator can fix all of them in a single pass.
type MissingFilesError struct {
	// Root is the asset root the paths were resolved against.
	Root string
	// Paths lists every missing file, sorted.
	Paths []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("missing manifest files under %s: %s",
		e.Root, strings.Join(e.Paths, ", "))
}

// Validate checks structural manifest invariants:
// at least one entry, relative non-escaping unique paths
// without whitespace, and exactly one designated executable.
func (m Manifest) Validate() error {
	if len(m) == 0 {
		return errEmptyManifest
	}

	seen := make(map[string]struct{}, len(m))

	executables := 0

	for _, f := range m {
		if filepath.IsAbs(f.Path) {
			return fmt.Errorf("%w: %s", errAbsolutePath, f.Path)
		}

		clean := filepath.Clean(f.Path)
		if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", errPathEscapesRoot, f.Path)
		}

		// Paths travel in space-delimited block headers inside the bundle.
		if strings.ContainsAny(f.Path, " \t\n'") {
			return fmt.Errorf("%w: %q", errPathUnencodable, f.Path)
		}

		if _, ok := seen[clean]; ok {
			return fmt.Errorf("%w: %s", errDuplicatePath, f.Path)
		}

		seen[clean] = struct{}{}

		if f.Executable {
			executables++
		}
	}

	switch {
	case executables == 0:
		return errNoExecutable
	case executables > 1:
		return errMultipleExecutable
	}

	return nil
}

// Load reads every manifest file under root and returns payloads in manifest
// order. Missing files are collected and reported together as a single
// MissingFilesError rather than failing on the first one.
func Load(root string, m Manifest) ([]Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var missing []string

	payloads := make([]Payload, 0, len(m))

	for _, f := range m {
		fullPath := filepath.Join(root, f.Path)

		content, err := os.ReadFile(filepath.Clean(fullPath))
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, f.Path)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("read %s: %w", fullPath, err)
		}

		var checksum []byte

		checksum, err = Checksum(content)
		if err != nil {
			return nil, err
		}

		payloads = append(payloads, Payload{
			SourceFile: f,
			Content:    content,
			Checksum:   checksum,
			Token:      TokenFor(f.Path, content),
		})
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return nil, &MissingFilesError{Root: root, Paths: missing}
	}

	return payloads, nil
}

// Checksum returns the digest of content using ChecksumFunction.
func Checksum(content []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(content); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
