package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	patchSearchMarker  = "<<<<<<< SEARCH"
	patchDividerMarker = "======="
	patchReplaceMarker = ">>>>>>> REPLACE"
)

// ParsePatchBlocks splits an fs_patch diff body into ordered PatchBlocks
// delimited by the literal SEARCH/=======/REPLACE markers (§4.2).
func ParsePatchBlocks(body string) ([]PatchBlock, error) {
	lines := strings.Split(body, "\n")
	var blocks []PatchBlock
	i := 0
	for i < len(lines) {
		if strings.TrimRight(lines[i], "\r") != patchSearchMarker {
			i++
			continue
		}
		i++
		var search []string
		for i < len(lines) && strings.TrimRight(lines[i], "\r") != patchDividerMarker {
			search = append(search, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("orchestrator: fs_patch: unterminated SEARCH block (missing =======)")
		}
		i++ // skip divider
		var replace []string
		for i < len(lines) && strings.TrimRight(lines[i], "\r") != patchReplaceMarker {
			replace = append(replace, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("orchestrator: fs_patch: unterminated block (missing >>>>>>> REPLACE)")
		}
		i++ // skip REPLACE marker
		blocks = append(blocks, PatchBlock{
			Search:  strings.Join(search, "\n"),
			Replace: strings.Join(replace, "\n"),
		})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("orchestrator: fs_patch: no SEARCH/REPLACE blocks found")
	}
	return blocks, nil
}

// ApplyResult is the outcome of applying a set of PatchBlocks to content.
type ApplyResult struct {
	Content string
	// NoMatch lists, in order, the blocks (by index) that were a no-op
	// because Search did not occur in the content at that point, or the
	// occurrence did not align to UTF-8 character boundaries.
	NoMatch []int
}

// ApplyPatchBlocks folds blocks left-to-right over content per §4.2:
//  1. empty Search -> append Replace at the end.
//  2. otherwise, replace the first byte-wise occurrence of Search, provided
//     the match aligns to UTF-8 character boundaries; no match (or a
//     misaligned match) is a silent no-op — not an error — and later blocks
//     still apply (§9 open question: no-match is recorded, never fatal;
//     FsPatchTool.StrictMatch, see patchtool.go, gates a stricter caller policy).
func ApplyPatchBlocks(content string, blocks []PatchBlock) ApplyResult {
	cur := content
	var noMatch []int
	for idx, b := range blocks {
		if b.Search == "" {
			cur = cur + b.Replace
			continue
		}
		pos := strings.Index(cur, b.Search)
		if pos < 0 {
			noMatch = append(noMatch, idx)
			continue
		}
		end := pos + len(b.Search)
		if !utf8.RuneStart(byteAt(cur, pos)) || (end < len(cur) && !utf8.RuneStart(byteAt(cur, end))) {
			noMatch = append(noMatch, idx)
			continue
		}
		var buf bytes.Buffer
		buf.Grow(len(cur) - len(b.Search) + len(b.Replace))
		buf.WriteString(cur[:pos])
		buf.WriteString(b.Replace)
		buf.WriteString(cur[end:])
		cur = buf.String()
	}
	return ApplyResult{Content: cur, NoMatch: noMatch}
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

// ApplyPatchFile reads path, applies blocks, and atomically writes the result
// back (write-to-temp-then-rename). Returns the ApplyResult and the content
// prior to the patch (for the caller's line-diff). path must be absolute.
func ApplyPatchFile(path string, blocks []PatchBlock) (before string, result ApplyResult, err error) {
	if !strings.HasPrefix(path, "/") && !isWindowsAbs(path) {
		return "", ApplyResult{}, &IOError{Op: "patch", Path: path, Cause: ErrPathNotAbsolute}
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", ApplyResult{}, &IOError{Op: "patch", Path: path, Cause: ErrFileNotFound}
		}
		return "", ApplyResult{}, &IOError{Op: "patch", Path: path, Cause: readErr}
	}
	before = string(data)
	result = ApplyPatchBlocks(before, blocks)

	tmp, err := os.CreateTemp(dirOf(path), ".fs_patch-*")
	if err != nil {
		return before, result, &IOError{Op: "patch", Path: path, Cause: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(result.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return before, result, &IOError{Op: "patch", Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return before, result, &IOError{Op: "patch", Path: path, Cause: err}
	}
	if info, statErr := os.Stat(path); statErr == nil {
		os.Chmod(tmpName, info.Mode())
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return before, result, &IOError{Op: "patch", Path: path, Cause: err}
	}
	return before, result, nil
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func isWindowsAbs(path string) bool {
	return len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

// LineDiff produces a minimal unified-style line diff between before and
// after, for display alongside the patch result. It is not used for
// correctness — ApplyPatchBlocks already operates byte-wise — only to give
// the caller a human-readable summary.
func LineDiff(before, after string) string {
	if before == after {
		return ""
	}
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")
	var b strings.Builder
	common := 0
	for common < len(beforeLines) && common < len(afterLines) && beforeLines[common] == afterLines[common] {
		common++
	}
	trailCommon := 0
	for trailCommon < len(beforeLines)-common && trailCommon < len(afterLines)-common &&
		beforeLines[len(beforeLines)-1-trailCommon] == afterLines[len(afterLines)-1-trailCommon] {
		trailCommon++
	}
	for i := common; i < len(beforeLines)-trailCommon; i++ {
		fmt.Fprintf(&b, "-%s\n", beforeLines[i])
	}
	for i := common; i < len(afterLines)-trailCommon; i++ {
		fmt.Fprintf(&b, "+%s\n", afterLines[i])
	}
	return b.String()
}
