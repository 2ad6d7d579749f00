// Package archive builds Walk abstraction on top of "archive/zip" for
// scenario bundles.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding"
)

// Entry is a regular file found in archive.
type Entry struct {
	Archive string
	// Name is entry path. Names not flagged as UTF-8 are decoded with forced
	// code page, raw name is kept when decoding fails and DecodeErr is set.
	Name      string
	DecodeErr error
	File      *zip.File
}

func (e Entry) Open() (io.ReadCloser, error) {
	return e.File.Open()
}

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. If an error is returned, processing stops.
type WalkFunc func(e Entry) error

// Walk walks all files in the archive whose names start with pattern, calling
// walkFn for each one. Pattern is matched against decoded names. Code page
// may be nil, zip names are then used as is. Archives with absolute entry
// paths or path traversal components ("..") are rejected.
func Walk(archive, pattern string, cp encoding.Encoding, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name, derr := DecodeName(&f.FileHeader, cp)
		if !isSafePath(name) || !isSafePath(f.FileHeader.Name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, pattern) {
			continue
		}
		if err := walkFn(Entry{Archive: archive, Name: name, DecodeErr: derr, File: f}); err != nil {
			return err
		}
	}
	return nil
}

// DecodeName returns entry name converted from code page when zip header
// does not declare UTF-8. Raw name is returned along with an error when
// conversion fails.
func DecodeName(fh *zip.FileHeader, cp encoding.Encoding) (string, error) {
	if cp == nil || !fh.NonUTF8 {
		return fh.Name, nil
	}
	name, err := cp.NewDecoder().String(fh.Name)
	if err != nil {
		return fh.Name, fmt.Errorf("unable to decode archive name %q: %w", fh.Name, err)
	}
	return name, nil
}

// sniffLen is enough for zip local header signature.
const sniffLen = 262

// IsArchive reports whether file is a zip archive judging by its content.
func IsArchive(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
