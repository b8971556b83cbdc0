// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jeranaias/aicli/internal/util"
)

// WriteFileArgs are the arguments of write_file.
type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileTool returns the write_file tool.
func WriteFileTool() *Tool {
	return newTool("write_file",
		"Write content to a file, overwriting it if it exists and creating it (and its parent directories) if not.",
		RiskMedium,
		Schema{Parameters: []Parameter{
			{Name: "path", Type: "string", Required: true, Description: "Path of the file to write"},
			{Name: "content", Type: "string", Required: true, Description: "Full new content of the file"},
		}},
		writeFile,
	)
}

func writeFile(ctx context.Context, args WriteFileArgs) Result {
	if args.Path == "" {
		return Failure("path must not be empty")
	}

	target, perm, err := writeTarget(args.Path)
	if err != nil {
		return Failure("%s", err)
	}
	if err := util.AtomicWriteFile(target, []byte(args.Content), perm); err != nil {
		return Failure("write %s: %s", args.Path, describeFSError(err, args.Path))
	}
	return Success(map[string]interface{}{
		"path":          args.Path,
		"bytes_written": len(args.Content),
	})
}

// writeTarget resolves where the content of path goes and with which mode.
// Symlinks are followed so the file they point to is overwritten, and an
// existing file keeps its permissions. New files get 0644.
func writeTarget(path string) (string, os.FileMode, error) {
	perm := os.FileMode(0644)

	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		info, err := os.Stat(resolved)
		if err != nil {
			return "", 0, &pathError{path: path, err: err}
		}
		if info.IsDir() {
			return "", 0, &pathError{path: path, msg: "is a directory"}
		}
		return resolved, info.Mode().Perm(), nil
	}

	// A dangling symlink creates the file it names.
	if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		dest, err := os.Readlink(path)
		if err != nil {
			return "", 0, &pathError{path: path, err: err}
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		return dest, perm, nil
	}
	return path, perm, nil
}

type pathError struct {
	path string
	msg  string
	err  error
}

func (e *pathError) Error() string {
	if e.err != nil {
		return describeFSError(e.err, e.path)
	}
	return e.path + " " + e.msg
}
