package bundle

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ovoloshchuk/kitpack/internal/manifest"
)

// Bundle is a parsed installer script: its provenance metadata and the
// ordered payloads recovered byte for byte.
type Bundle struct {
	Metadata

	Payloads []manifest.Payload
}

var (
	errNotABundle       = errors.New("file is not a kitpack bundle")
	errTruncatedBlock   = errors.New("payload block is truncated")
	errBadBlockHeader   = errors.New("malformed payload block header")
	errChecksumMismatch = errors.New("payload checksum mismatch")
)

const (
	metaPrefix        = "# kitpack:"
	blockHeaderPrefix = "# kitpack:file "
)

// ParseFile reads and parses the bundle script at path.
func ParseFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}

	return b, nil
}

// Parse recovers metadata and payloads from a generated bundle script.
// Payload content is validated against the embedded checksum, so a corrupted
// or truncated bundle is rejected before anything is installed.
func Parse(data []byte) (*Bundle, error) {
	b := &Bundle{}

	pos := 0
	sawMetadata := false

	for pos < len(data) {
		line, next := nextLine(data, pos)

		if strings.HasPrefix(line, blockHeaderPrefix) {
			payload, after, err := parseBlock(data, pos)
			if err != nil {
				return nil, err
			}

			b.Payloads = append(b.Payloads, *payload)
			pos = after

			continue
		}

		if strings.HasPrefix(line, metaPrefix) {
			b.readMetadataLine(strings.TrimPrefix(line, metaPrefix))

			sawMetadata = true
		}

		pos = next
	}

	if !sawMetadata || len(b.Payloads) == 0 {
		return nil, errNotABundle
	}

	return b, nil
}

// readMetadataLine consumes one `key value` provenance line.
func (b *Bundle) readMetadataLine(rest string) {
	key, value, ok := strings.Cut(rest, " ")
	if !ok {
		return
	}

	value = strings.TrimSpace(value)

	switch key {
	case "revision":
		b.Revision = value
	case "built":
		b.BuiltAt = value
	case "tool":
		b.Tool = value
	case "target":
		b.TargetDir = value
	case "ignore":
		b.IgnoreEntries = append(b.IgnoreEntries, value)
	}
}

// parseBlock parses one extraction block starting at the header line offset.
// It returns the payload and the offset just past the terminator line.
func parseBlock(data []byte, pos int) (*manifest.Payload, int, error) {
	header, next := nextLine(data, pos)

	fields, err := parseBlockHeader(header)
	if err != nil {
		return nil, 0, err
	}

	// Skip the extract_file invocation line that opens the heredoc.
	_, bodyStart := nextLine(data, next)

	boundary := []byte("\n" + fields.token + "\n")

	rel := bytes.Index(data[bodyStart:], boundary)
	if rel < 0 {
		return nil, 0, fmt.Errorf("%w: %s: terminator %s not found",
			errTruncatedBlock, fields.path, fields.token)
	}

	body := data[bodyStart : bodyStart+rel+1]
	if fields.length > len(body) {
		return nil, 0, fmt.Errorf("%w: %s: recorded length %d exceeds block size %d",
			errTruncatedBlock, fields.path, fields.length, len(body))
	}

	content := make([]byte, fields.length)
	copy(content, body[:fields.length])

	checksum, err := manifest.Checksum(content)
	if err != nil {
		return nil, 0, err
	}

	if !bytes.Equal(checksum, fields.checksum) {
		return nil, 0, fmt.Errorf("%w: %s", errChecksumMismatch, fields.path)
	}

	payload := &manifest.Payload{
		SourceFile: manifest.SourceFile{
			Path:       fields.path,
			Executable: fields.mode == modeExecutable,
		},
		Content:  content,
		Checksum: checksum,
		Token:    fields.token,
	}

	return payload, bodyStart + rel + len(boundary), nil
}

// blockFields are the parsed key=value pairs of one block header line.
type blockFields struct {
	path     string
	mode     string
	length   int
	checksum []byte
	token    string
}

func parseBlockHeader(line string) (*blockFields, error) {
	fields := &blockFields{length: -1}

	for _, kv := range strings.Fields(strings.TrimPrefix(line, blockHeaderPrefix)) {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", errBadBlockHeader, line)
		}

		var err error

		switch key {
		case "path":
			fields.path = value
		case "mode":
			fields.mode = value
		case "bytes":
			fields.length, err = strconv.Atoi(value)
		case "sha512":
			fields.checksum, err = base64.StdEncoding.DecodeString(value)
		case "token":
			fields.token = value
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errBadBlockHeader, key, err)
		}
	}

	if fields.path == "" || fields.token == "" || fields.length < 0 || len(fields.checksum) == 0 {
		return nil, fmt.Errorf("%w: %q", errBadBlockHeader, line)
	}

	return fields, nil
}

// nextLine returns the line starting at pos (without newline) and the offset
// of the following line.
func nextLine(data []byte, pos int) (string, int) {
	idx := bytes.IndexByte(data[pos:], '\n')
	if idx < 0 {
		return string(data[pos:]), len(data)
	}

	return string(data[pos : pos+idx]), pos + idx + 1
}
