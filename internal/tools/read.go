// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MaxReadSize caps the bytes returned by read_file.
	MaxReadSize = 256 * 1024

	// MaxListEntries caps list_dir results.
	MaxListEntries = 5000
)

// ReadFileArgs are the arguments of read_file.
type ReadFileArgs struct {
	Path string `json:"path"`
}

// ListDirArgs are the arguments of list_dir.
type ListDirArgs struct {
	Path string `json:"path"`
}

// ReadFileTool returns the read_file tool.
func ReadFileTool() *Tool {
	return newTool("read_file",
		"Read a text file and return its content.",
		RiskLow,
		Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "Path of the file to read"},
		}},
		readFile,
	)
}

// ListDirTool returns the list_dir tool.
func ListDirTool() *Tool {
	return newTool("list_dir",
		"List the immediate entries of a directory. Directories end with '/'.",
		RiskLow,
		Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Directory to list", Default: "."},
		}},
		listDir,
	)
}

func readFile(ctx context.Context, args ReadFileArgs) Result {
	if args.Path == "" {
		return Failure("path must not be empty")
	}

	f, err := os.Open(args.Path)
	if err != nil {
		return Failure("%s", describeFSError(err, args.Path))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Failure("%s", describeFSError(err, args.Path))
	}
	if info.IsDir() {
		return Failure("%s is a directory", args.Path)
	}

	// Read one byte past the limit to detect truncation.
	data, err := io.ReadAll(io.LimitReader(f, MaxReadSize+1))
	if err != nil {
		return Failure("%s", describeFSError(err, args.Path))
	}

	truncated := false
	if len(data) > MaxReadSize {
		data = data[:MaxReadSize]
		truncated = true
	}

	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "�")
	}

	result := Success(map[string]interface{}{
		"path":    args.Path,
		"content": content,
	})
	result.Truncated = truncated
	return result
}

func listDir(ctx context.Context, args ListDirArgs) Result {
	path := args.Path
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Failure("%s", describeFSError(err, path))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	result := Success(map[string]interface{}{
		"path": path,
	})
	if len(names) > MaxListEntries {
		names = names[:MaxListEntries]
		result.Truncated = true
	}
	result.Data["entries"] = names
	return result
}

// describeFSError turns a filesystem error into a short message.
func describeFSError(err error, path string) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file not found: " + path
	case errors.Is(err, fs.ErrPermission):
		return "permission denied: " + path
	default:
		return err.Error()
	}
}
