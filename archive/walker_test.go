package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

type entry struct {
	name    string
	body    string
	nonUTF8 bool
}

func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(name)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, NonUTF8: e.nonUTF8, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("Failed to create %s in zip: %v", e.name, err)
		}
		if _, err := io.WriteString(fw, e.body); err != nil {
			t.Fatalf("Failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return name
}

func walkNames(t *testing.T, archive, pattern string) []string {
	t.Helper()
	var names []string
	err := Walk(archive, pattern, nil, func(e Entry) error {
		if e.Archive != archive {
			t.Errorf("archive = %s, want %s", e.Archive, archive)
		}
		names = append(names, e.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return names
}

func TestWalk(t *testing.T) {
	bundle := writeZip(t,
		entry{name: "feed/list.xml", body: "<scenario/>"},
		entry{name: "feed/"},
		entry{name: "feed/nested/scroll.xml", body: "<scenario/>"},
		entry{name: "carousel/swiper.xml", body: "<scenario/>"},
		entry{name: "README.txt", body: "scenarios"},
	)

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"feed/list.xml", "feed/nested/scroll.xml", "carousel/swiper.xml", "README.txt"}},
		{"feed/", []string{"feed/list.xml", "feed/nested/scroll.xml"}},
		{"feed/nested", []string{"feed/nested/scroll.xml"}},
		{"Feed/", nil},
		{"missing/", nil},
	}
	for _, tt := range tests {
		t.Run("pattern "+tt.pattern, func(t *testing.T) {
			if got := walkNames(t, bundle, tt.pattern); !slices.Equal(got, tt.want) {
				t.Errorf("visited %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWalkStops(t *testing.T) {
	bundle := writeZip(t, entry{name: "a.xml"}, entry{name: "b.xml"}, entry{name: "c.xml"})
	stop := errors.New("stop")

	count := 0
	err := Walk(bundle, "", nil, func(e Entry) error {
		count++
		if e.Name == "b.xml" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if count != 2 {
		t.Errorf("visited %d entries, want 2", count)
	}
}

func TestWalkContent(t *testing.T) {
	bundle := writeZip(t, entry{name: "list.xml", body: `<scenario name="list"/>`})
	err := Walk(bundle, "", nil, func(e Entry) error {
		r, err := e.Open()
		if err != nil {
			return err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if string(data) != `<scenario name="list"/>` {
			t.Errorf("content = %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
}

func TestWalkUnsafe(t *testing.T) {
	for _, name := range []string{"../escape.xml", "feed/../../escape.xml", "/etc/escape.xml"} {
		t.Run(name, func(t *testing.T) {
			bundle := writeZip(t, entry{name: "ok.xml"}, entry{name: name})
			if err := Walk(bundle, "", nil, func(Entry) error { return nil }); err == nil {
				t.Error("Walk() must reject unsafe entry")
			}
		})
	}
}

func TestWalkInvalidArchive(t *testing.T) {
	if err := Walk(filepath.Join(t.TempDir(), "none.zip"), "", nil, func(Entry) error { return nil }); err == nil {
		t.Error("expected error for missing archive")
	}

	name := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(name, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Walk(name, "", nil, func(Entry) error { return nil }); err == nil {
		t.Error("expected error for broken archive")
	}
}

func TestWalkCodePage(t *testing.T) {
	raw, err := charmap.Windows1251.NewEncoder().String("лента/прокрутка.xml")
	if err != nil {
		t.Fatal(err)
	}
	bundle := writeZip(t, entry{name: raw, nonUTF8: true}, entry{name: "plain.xml"})

	var got []string
	err = Walk(bundle, "лента/", charmap.Windows1251, func(e Entry) error {
		if e.DecodeErr != nil {
			t.Errorf("DecodeErr = %v", e.DecodeErr)
		}
		got = append(got, e.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if !slices.Equal(got, []string{"лента/прокрутка.xml"}) {
		t.Errorf("visited %q", got)
	}

	// without code page raw name never matches decoded pattern
	if names := walkNames(t, bundle, "лента/"); len(names) != 0 {
		t.Errorf("visited %q without code page", names)
	}
}

func TestDecodeName(t *testing.T) {
	fh := &zip.FileHeader{Name: "plain.xml"}
	if n, err := DecodeName(fh, charmap.Windows1251); err != nil || n != "plain.xml" {
		t.Errorf("DecodeName() = %q, %v", n, err)
	}
	fh.NonUTF8 = true
	if n, _ := DecodeName(fh, nil); n != "plain.xml" {
		t.Errorf("DecodeName() without code page = %q", n)
	}
}

func TestIsArchive(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "list.xml")
	if err := os.WriteFile(text, []byte(`<scenario/>`), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"zip", writeZip(t, entry{name: "a.xml", body: "<scenario/>"}), true},
		{"xml", text, false},
		{"empty", empty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsArchive(tt.path)
			if err != nil {
				t.Fatalf("IsArchive() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsArchive() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := IsArchive(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"list.xml", true},
		{"feed/list.xml", true},
		{"feed/..list.xml", true},
		{"../list.xml", false},
		{"feed/../../list.xml", false},
		{"/list.xml", false},
		{`\list.xml`, false},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.path); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
