// Package diffparse summarizes the per-file changes fetched from the
// source host.
package diffparse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anushkapunekar/agentops/internal/vcs"
	"github.com/sourcegraph/go-diff/diff"
)

// FileStat holds the counts for one changed file.
type FileStat struct {
	Path      string
	OldPath   string
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
	Additions int
	Deletions int
}

// Summary totals the changes of a merge request.
type Summary struct {
	Files     []FileStat
	Additions int
	Deletions int
}

func (s Summary) String() string {
	noun := "files"
	if len(s.Files) == 1 {
		noun = "file"
	}
	return fmt.Sprintf("%d %s, +%d -%d", len(s.Files), noun, s.Additions, s.Deletions)
}

// Summarize counts added and deleted lines per file. Host diffs carry
// hunks without file headers, so a pseudo header is added before parsing.
func Summarize(files []vcs.FileDiff) Summary {
	var s Summary
	for _, f := range files {
		fs := FileStat{
			Path:      f.NewPath,
			OldPath:   f.OldPath,
			IsNew:     f.NewFile,
			IsDeleted: f.DeletedFile,
			IsRenamed: f.RenamedFile,
		}
		if fs.Path == "" {
			fs.Path = f.OldPath
		}
		if strings.Contains(f.Diff, "Binary files") || strings.Contains(f.Diff, "GIT binary patch") {
			fs.IsBinary = true
		}
		if !fs.IsBinary {
			fs.IsBinary = isBinaryReviewPath(fs.Path)
		}

		if !fs.IsBinary && f.Diff != "" {
			fs.Additions, fs.Deletions = countChanges(f)
		}

		s.Files = append(s.Files, fs)
		s.Additions += fs.Additions
		s.Deletions += fs.Deletions
	}
	return s
}

func countChanges(f vcs.FileDiff) (adds, dels int) {
	header := fmt.Sprintf("--- a/%s\n+++ b/%s\n", f.OldPath, f.NewPath)
	parsed, err := diff.ParseFileDiff([]byte(header + f.Diff))
	if err != nil || parsed == nil || len(parsed.Hunks) == 0 {
		return countLines(f.Diff)
	}
	for _, h := range parsed.Hunks {
		a, d := countHunkLines(string(h.Body))
		adds += a
		dels += d
	}
	return adds, dels
}

// countHunkLines counts a hunk body by its first byte only. Removed
// "-- comment" lines and added "++i" lines look like file headers.
func countHunkLines(body string) (adds, dels int) {
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case '+':
			adds++
		case '-':
			dels++
		}
	}
	return adds, dels
}

// countLines is used when the diff could not be parsed. File headers are
// skipped until the first hunk header.
func countLines(body string) (adds, dels int) {
	inHunk := false
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk && (strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---")):
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}
	return adds, dels
}

func isBinaryReviewPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".ico", ".tiff", ".heic",
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
		".jar", ".war", ".so", ".dll", ".dylib", ".a", ".o", ".obj", ".exe", ".bin", ".class",
		".woff", ".woff2", ".ttf", ".otf", ".eot",
		".mp3", ".mp4", ".mov", ".wav", ".avi", ".mkv", ".flac":
		return true
	default:
		return false
	}
}
