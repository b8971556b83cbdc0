// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/aicli/internal/util"
)

const (
	// MaxMatches caps search_files and search_content results.
	MaxMatches = 1000

	// MaxLineLength caps the text of a reported matching line, in runes.
	MaxLineLength = 500
)

// Match is one search_content hit.
type Match struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// SearchFilesArgs are the arguments of search_files.
type SearchFilesArgs struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

// SearchContentArgs are the arguments of search_content.
type SearchContentArgs struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
}

// SearchFilesTool returns the search_files tool.
func SearchFilesTool() *Tool {
	return newTool("search_files",
		"Recursively list files under a directory whose name contains a pattern (all files when no pattern is given).",
		RiskLow,
		Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Directory to search", Default: "."},
			{Name: "pattern", Type: "string", Description: "Substring the file name must contain"},
		}},
		searchFiles,
	)
}

// SearchContentTool returns the search_content tool.
func SearchContentTool() *Tool {
	return newTool("search_content",
		"Recursively search text files under a directory for lines containing a keyword. Returns file, line number and line text for each hit.",
		RiskLow,
		Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "Directory (or file) to search"},
			{Name: "keyword", Type: "string", Required: true, Description: "Text the line must contain"},
		}},
		searchContent,
	)
}

func searchFiles(ctx context.Context, args SearchFilesArgs) Result {
	root := args.Path
	if root == "" {
		root = "."
	}
	if _, err := os.Stat(root); err != nil {
		return Failure("%s", describeFSError(err, root))
	}

	files := make([]string, 0)
	truncated := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable directories are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if args.Pattern == "" || strings.Contains(d.Name(), args.Pattern) {
			if len(files) >= MaxMatches {
				truncated = true
				return fs.SkipAll
			}
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Failure("search %s: %s", root, describeFSError(err, root))
	}

	result := Success(map[string]interface{}{
		"path":  root,
		"files": files,
	})
	result.Truncated = truncated
	return result
}

func searchContent(ctx context.Context, args SearchContentArgs) Result {
	if args.Keyword == "" {
		return Failure("keyword must not be empty")
	}
	root := args.Path
	if root == "" {
		root = "."
	}
	if _, err := os.Stat(root); err != nil {
		return Failure("%s", describeFSError(err, root))
	}

	matches := make([]Match, 0)
	truncated := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		hits, full := scanFile(path, args.Keyword, MaxMatches-len(matches))
		matches = append(matches, hits...)
		if full {
			truncated = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return Failure("search %s: %s", root, describeFSError(err, root))
	}

	result := Success(map[string]interface{}{
		"keyword": args.Keyword,
		"matches": matches,
	})
	result.Truncated = truncated
	return result
}

// scanFile returns up to limit matching lines of path. Files that cannot be
// read or are not UTF-8 text yield no matches. full reports that the limit
// was reached with more matches remaining.
func scanFile(path, keyword string, limit int) (hits []Match, full bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, false
	}
	needle := []byte(keyword)
	if !bytes.Contains(data, needle) {
		return nil, false
	}

	// The file is already in memory, so lines of any length are scanned.
	lineNum := 0
	for rest := data; len(rest) > 0; {
		lineNum++
		line := rest
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			rest = nil
		}
		if !bytes.Contains(line, needle) {
			continue
		}
		if len(hits) >= limit {
			return hits, true
		}
		hits = append(hits, Match{
			File: path,
			Line: lineNum,
			Text: util.TruncateRunes(strings.TrimRight(string(line), "\r"), MaxLineLength),
		})
	}
	return hits, false
}
