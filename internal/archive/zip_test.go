package archive_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"battery_project/internal/archive"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExpandZip(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"display1.png":        {1, 2, 3},
		"photos/display2.JPG": {4, 5},
		"display3.webp":       {6},
		"readme.txt":          []byte("notes"),
		"data/export.csv":     []byte("a,b"),
		"nested/dir/.keep":    {},
	})

	entries, err := archive.ExpandZip(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 images", len(entries))
	}

	byName := map[string]archive.Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if _, ok := byName["readme.txt"]; ok {
		t.Error("non-image entry leaked")
	}
	if e, ok := byName["photos/display2.JPG"]; !ok {
		t.Error("uppercase extension should match")
	} else if len(e.Payload) != 2 {
		t.Errorf("payload size = %d, want 2", len(e.Payload))
	}
}

func TestExpandZipSkipsOversized(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"small.png": {1},
		"big.png":   bytes.Repeat([]byte{9}, 100),
	})

	entries, err := archive.ExpandZip(data, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "small.png" {
		t.Errorf("entries = %v, want only small.png", entries)
	}
}

func TestExpandZipCorrupt(t *testing.T) {
	if _, err := archive.ExpandZip([]byte("this is not a zip"), 0); err == nil {
		t.Fatal("corrupt archive should fail as a whole")
	}
}
