package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/maruel/natural"
	yaml "gopkg.in/yaml.v3"

	"xpo/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty report. When configured destination cannot be
// created report goes to temporary directory.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{entries: make(map[string]entry), file: f}, nil
}

// entry is either a file system path (file or directory) or in-memory data.
type entry struct {
	path  string
	abs   string
	stamp time.Time
	data  []byte
}

// Report collects files and data for the debug archive written on Close.
// Nil report silently ignores everything. Engine callbacks may run on timer
// goroutines, so methods are safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	entries map[string]entry
	file    *os.File
}

// Close writes the archive.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	defer r.file.Close()
	return r.write()
}

// Name returns absolute name of the archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store remembers path which content will be archived on Close. Storing
// different path under the same name is a programming error.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[name]; ok && old.path != path {
		panic(fmt.Sprintf("report entry %q redefined: was %s, now %s", name, old.path, path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r.entries[name] = entry{path: path, abs: abs}
}

// StoreData archives data under name. Scenarios may be replayed more than
// once, repeated names get time suffix.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if _, ok := r.entries[name]; ok {
		name = fmt.Sprintf("%s-%d", name, now.UnixNano())
	}
	r.entries[name] = entry{data: data, stamp: now}
}

// StoreYAML archives v marshaled to YAML.
func (r *Report) StoreYAML(name string, v any) error {
	if r == nil {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to marshal report entry %q: %w", name, err)
	}
	r.StoreData(name, data)
	return nil
}

func (r *Report) write() error {
	arc := zip.NewWriter(r.file)
	defer arc.Close()

	names := slices.Collect(maps.Keys(r.entries))
	// numbered results read better in human order
	sort.Sort(natural.StringSlice(names))

	now := time.Now()
	manifest := new(bytes.Buffer)
	for _, name := range names {
		e := r.entries[name]
		stamp := e.stamp
		if stamp.IsZero() {
			stamp = now
		}
		fmt.Fprintf(manifest, "%s\t%s\t%s : %s\n", stamp.UTC().Format(time.UnixDate), name, e.path, e.abs)
	}
	if err := addReader(arc, "MANIFEST", now, manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := r.entries[name]
		if len(e.data) > 0 {
			if err := addReader(arc, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		info, err := os.Stat(e.abs)
		if err != nil {
			// file could be gone by now
			continue
		}
		if info.IsDir() {
			err = addDir(arc, name, e.abs)
		} else if info.Mode().IsRegular() {
			err = addFile(arc, name, e.abs, info.ModTime())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func addReader(arc *zip.Writer, name string, stamp time.Time, src io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: stamp})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func addFile(arc *zip.Writer, name, path string, stamp time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return addReader(arc, name, stamp, f)
}

func addDir(arc *zip.Writer, name, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addFile(arc, filepath.ToSlash(filepath.Join(name, rel)), path, info.ModTime())
	})
}
