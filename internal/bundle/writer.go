package bundle

import (
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"text/template"

	"github.com/ovoloshchuk/kitpack/internal/manifest"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//nolint:gochecknoglobals // Parsed once, read-only afterwards.
var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	modeExecutable = "0755"
	modeRegular    = "0644"
)

var (
	errNoPayloads         = errors.New("bundle must contain at least one payload")
	errNoDesignatedScript = errors.New("bundle must contain exactly one executable payload")
)

// Metadata is the build provenance embedded in the bundle header.
// It exists for diagnostic traceability and never influences installer logic.
type Metadata struct {
	// Revision is the short source revision identifier of the build.
	Revision string
	// BuiltAt is a human-readable build timestamp.
	BuiltAt string
	// Tool is the packager version string.
	Tool string
	// TargetDir is the directory name the installer materializes.
	TargetDir string
	// IgnoreEntries are appended to the consumer's ignore list at install time.
	IgnoreEntries []string
}

// headerData feeds the header template.
type headerData struct {
	Metadata

	Files []manifest.SourceFile
}

// blockData feeds one extraction block template.
type blockData struct {
	Path        string
	Mode        string
	Length      int
	ChecksumB64 string
	Token       string
	Body        string
}

// footerData feeds the footer template.
type footerData struct {
	TargetDir      string
	ExecutablePath string
	IgnoreEntries  []string
}

// Write renders a complete self-contained installer script: header with
// provenance and the precondition/branch/confirm logic, one extraction block
// per payload in manifest order, and the finalize footer.
func Write(w io.Writer, meta Metadata, payloads []manifest.Payload) error {
	executablePath, err := designatedExecutable(payloads)
	if err != nil {
		return err
	}

	files := make([]manifest.SourceFile, 0, len(payloads))
	for _, p := range payloads {
		files = append(files, p.SourceFile)
	}

	if err = templates.ExecuteTemplate(w, "header.sh.tmpl", &headerData{
		Metadata: meta,
		Files:    files,
	}); err != nil {
		return fmt.Errorf("render header: %w", err)
	}

	for _, p := range payloads {
		if err = writeBlock(w, p); err != nil {
			return fmt.Errorf("render block for %s: %w", p.Path, err)
		}
	}

	if err = templates.ExecuteTemplate(w, "footer.sh.tmpl", &footerData{
		TargetDir:      meta.TargetDir,
		ExecutablePath: executablePath,
		IgnoreEntries:  meta.IgnoreEntries,
	}); err != nil {
		return fmt.Errorf("render footer: %w", err)
	}

	return nil
}

// writeBlock renders one terminator-delimited extraction block.
// The heredoc body always ends with a newline so the token sits on its own
// line; the recorded byte length lets extraction drop the padding again.
func writeBlock(w io.Writer, p manifest.Payload) error {
	body := string(p.Content)
	if len(body) == 0 || body[len(body)-1] != '\n' {
		body += "\n"
	}

	mode := modeRegular
	if p.Executable {
		mode = modeExecutable
	}

	return templates.ExecuteTemplate(w, "block.sh.tmpl", &blockData{
		Path:        p.Path,
		Mode:        mode,
		Length:      len(p.Content),
		ChecksumB64: base64.StdEncoding.EncodeToString(p.Checksum),
		Token:       p.Token,
		Body:        body,
	})
}

// designatedExecutable returns the path of the single executable payload.
func designatedExecutable(payloads []manifest.Payload) (string, error) {
	if len(payloads) == 0 {
		return "", errNoPayloads
	}

	path := ""

	for _, p := range payloads {
		if !p.Executable {
			continue
		}

		if path != "" {
			return "", errNoDesignatedScript
		}

		path = p.Path
	}

	if path == "" {
		return "", errNoDesignatedScript
	}

	return path, nil
}
