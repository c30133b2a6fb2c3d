package agent

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/postpilot/postpilot/internal/domain"
)

// UntrustedOutputError indicates model output that failed header or
// path validation. The whole emission batch fails; nothing is written.
type UntrustedOutputError struct {
	Reason string
	Path   string
}

func (e *UntrustedOutputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("untrusted model output: %s: %s", e.Reason, e.Path)
	}
	return "untrusted model output: " + e.Reason
}

// IsUntrustedOutput reports whether err is an *UntrustedOutputError.
func IsUntrustedOutput(err error) bool {
	_, ok := err.(*UntrustedOutputError)
	return ok
}

var fencedSegment = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\\n(.*?)```")

// Emitter extracts "// FILE: path" labeled sections from model output
// and writes them under Root. Only paths matching AllowList patterns
// are accepted. Batches are atomic: every section is parsed and
// path-validated before the first byte hits disk.
type Emitter struct {
	Root      string
	AllowList []string
	Marker    string // comment marker opening a header line, e.g. "//"
}

// Extract parses model text into file records without writing anything.
func (e *Emitter) Extract(text string) ([]domain.GeneratedFile, error) {
	segments := fencedSegment.FindAllStringSubmatch(text, -1)
	if len(segments) == 0 {
		return nil, &UntrustedOutputError{Reason: "no fenced code block in model output"}
	}

	var files []domain.GeneratedFile
	for _, seg := range segments {
		sections, err := e.splitSections(seg[1])
		if err != nil {
			return nil, err
		}
		files = append(files, sections...)
	}
	if len(files) == 0 {
		return nil, &UntrustedOutputError{Reason: "no file sections in model output"}
	}
	return files, nil
}

// splitSections divides one fenced segment on header lines. The first
// non-blank line must be a header; malformed output is rejected whole.
func (e *Emitter) splitSections(segment string) ([]domain.GeneratedFile, error) {
	header := e.Marker + " FILE:"
	lines := strings.Split(segment, "\n")
	// A fenced segment ends with the newline before the closing fence.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var files []domain.GeneratedFile
	var current *domain.GeneratedFile
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), header) {
			if current != nil {
				files = append(files, *current)
			}
			declared := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), header))
			rel, err := e.validatePath(declared)
			if err != nil {
				return nil, err
			}
			current = &domain.GeneratedFile{Path: rel}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, &UntrustedOutputError{Reason: "section does not start with a FILE header"}
		}
		current.Contents += line + "\n"
	}
	if current != nil {
		files = append(files, *current)
	}
	return files, nil
}

// validatePath normalizes a declared path and enforces the sandbox
// rules: relative, no parent escapes, inside the allow-list.
func (e *Emitter) validatePath(declared string) (string, error) {
	if strings.TrimSpace(declared) == "" {
		return "", &UntrustedOutputError{Reason: "empty file path"}
	}
	if path.IsAbs(declared) || filepath.IsAbs(declared) {
		return "", &UntrustedOutputError{Reason: "absolute file path", Path: declared}
	}

	clean := path.Clean(strings.ReplaceAll(declared, "\\", "/"))
	if clean == "." || clean == "" {
		return "", &UntrustedOutputError{Reason: "empty file path", Path: declared}
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &UntrustedOutputError{Reason: "path escapes project root", Path: declared}
	}

	for _, pattern := range e.AllowList {
		ok, err := doublestar.Match(pattern, clean)
		if err != nil {
			return "", fmt.Errorf("allow-list pattern %q: %w", pattern, err)
		}
		if ok {
			return clean, nil
		}
	}
	return "", &UntrustedOutputError{Reason: "path not in allow-list", Path: declared}
}

// Emit extracts and persists a batch, returning the relative paths
// written. Existing files are overwritten; a trailing newline is
// ensured on every file.
func (e *Emitter) Emit(text string) ([]string, error) {
	files, err := e.Extract(text)
	if err != nil {
		return nil, err
	}
	return e.WriteFiles(files)
}

// WriteFiles persists already-validated records under Root.
func (e *Emitter) WriteFiles(files []domain.GeneratedFile) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		target := filepath.Join(e.Root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("create parent dir for %s: %w", f.Path, err)
		}

		contents := f.Contents
		if !strings.HasSuffix(contents, "\n") {
			contents += "\n"
		}
		if err := os.WriteFile(target, []byte(contents), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Path, err)
		}
		paths = append(paths, f.Path)
	}
	return paths, nil
}
