package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// requireAbsolute rejects a non-absolute path with ErrInvalidPath, matching
// every path-bearing tool's contract (§4.1).
func requireAbsolute(path string) error {
	if path == "" || !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// --- fs_read ---

// FsReadTool reads a file's content. When the PDF extractor is set and the
// file looks like a PDF, text is extracted via that hook instead of raw
// bytes — reusing the framework's ingest PDF extraction path (§4.1 [DOMAIN]).
type FsReadTool struct {
	// PDFExtract, if set, extracts text from PDF bytes. Optional.
	PDFExtract func([]byte) (string, error)
	MaxBytes   int64
}

func NewFsReadTool() *FsReadTool { return &FsReadTool{MaxBytes: 1 << 20} }

func (t *FsReadTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_read",
		Description: "Read the content of a file at an absolute path.",
		Schema:      jsonSchema(`"path":{"type":"string","description":"Absolute file path"}`, "path"),
	}
}

func (t *FsReadTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_read", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &IOError{Op: "read", Path: p.Path, Cause: ErrFileNotFound}
		}
		return "", &IOError{Op: "read", Path: p.Path, Cause: err}
	}
	max := t.MaxBytes
	if max <= 0 {
		max = 1 << 20
	}
	if int64(len(data)) > max {
		data = data[:max]
	}
	if t.PDFExtract != nil && strings.HasSuffix(strings.ToLower(p.Path), ".pdf") {
		if text, err := t.PDFExtract(data); err == nil {
			return text, nil
		}
	}
	return string(data), nil
}

// --- fs_write ---

type FsWriteTool struct{}

func NewFsWriteTool() *FsWriteTool { return &FsWriteTool{} }

func (t *FsWriteTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_write",
		Description: "Write (overwrite) a file at an absolute path with the given content, creating parent directories as needed.",
		Schema:      jsonSchema(`"path":{"type":"string"},"content":{"type":"string"}`, "path", "content"),
	}
}

func (t *FsWriteTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_write", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return "", &IOError{Op: "write", Path: p.Path, Cause: err}
	}
	if err := os.WriteFile(p.Path, []byte(p.Content), 0o644); err != nil {
		return "", &IOError{Op: "write", Path: p.Path, Cause: err}
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(p.Content), p.Path), nil
}

// --- fs_remove ---

type FsRemoveTool struct{}

func NewFsRemoveTool() *FsRemoveTool { return &FsRemoveTool{} }

func (t *FsRemoveTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_remove",
		Description: "Remove a file or empty directory at an absolute path.",
		Schema:      jsonSchema(`"path":{"type":"string"}`, "path"),
	}
}

func (t *FsRemoveTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_remove", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	if err := os.Remove(p.Path); err != nil {
		if os.IsNotExist(err) {
			return "", &IOError{Op: "remove", Path: p.Path, Cause: ErrFileNotFound}
		}
		return "", &IOError{Op: "remove", Path: p.Path, Cause: err}
	}
	return fmt.Sprintf("removed %s", p.Path), nil
}

// --- fs_list ---

type FsListTool struct{}

func NewFsListTool() *FsListTool { return &FsListTool{} }

func (t *FsListTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_list",
		Description: "List entries of a directory at an absolute path, one per line (type prefix + name).",
		Schema:      jsonSchema(`"path":{"type":"string"}`, "path"),
	}
}

func (t *FsListTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_list", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	entries, err := os.ReadDir(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &IOError{Op: "list", Path: p.Path, Cause: ErrFileNotFound}
		}
		return "", &IOError{Op: "list", Path: p.Path, Cause: err}
	}
	var b strings.Builder
	for _, e := range entries {
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(&b, "%s\t%s\n", kind, e.Name())
	}
	return b.String(), nil
}

// --- fs_file_info ---

type FsFileInfoTool struct{}

func NewFsFileInfoTool() *FsFileInfoTool { return &FsFileInfoTool{} }

func (t *FsFileInfoTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_file_info",
		Description: "Return metadata (size, type, modified time) for a path.",
		Schema:      jsonSchema(`"path":{"type":"string"}`, "path"),
	}
}

func (t *FsFileInfoTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_file_info", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &IOError{Op: "stat", Path: p.Path, Cause: ErrFileNotFound}
		}
		return "", &IOError{Op: "stat", Path: p.Path, Cause: err}
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	out, _ := json.Marshal(map[string]any{
		"name":     info.Name(),
		"size":     info.Size(),
		"type":     kind,
		"modified": info.ModTime().UTC().Format(time.RFC3339),
	})
	return string(out), nil
}

// --- fs_search ---

// FsSearchTool greps file contents under an absolute root path. Grounded on
// the framework's single-purpose tool-struct convention (tools/http,
// tools/file); implemented with regexp/filepath.WalkDir — no third-party
// grep library appears in the example pack (see DESIGN.md).
type FsSearchTool struct {
	MaxMatches int
}

func NewFsSearchTool() *FsSearchTool { return &FsSearchTool{MaxMatches: 200} }

func (t *FsSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "fs_search",
		Description: "Search file contents under an absolute root path for a regular expression; returns matching file:line:text entries.",
		Schema:      jsonSchema(`"path":{"type":"string"},"pattern":{"type":"string"}`, "path", "pattern"),
	}
}

func (t *FsSearchTool) Call(_ context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "fs_search", Cause: err}
	}
	if err := requireAbsolute(p.Path); err != nil {
		return "", err
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return "", &ToolExecutionError{Tool: "fs_search", Cause: fmt.Errorf("invalid pattern: %w", err)}
	}
	max := t.MaxMatches
	if max <= 0 {
		max = 200
	}
	var b strings.Builder
	count := 0
	walkErr := filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || count >= max {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if count >= max {
				break
			}
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d:%s\n", path, i+1, line)
				count++
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", &IOError{Op: "search", Path: p.Path, Cause: walkErr}
	}
	if count == 0 {
		return "no matches", nil
	}
	return b.String(), nil
}
