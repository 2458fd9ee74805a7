package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"battery_project/pkg/logger"
)

// Entry is one image pulled out of an uploaded archive.
type Entry struct {
	Name    string
	MIME    string
	Payload []byte
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// ExpandZip reads a ZIP payload and returns one entry per image file.
// Directories and entries without an image extension are ignored. Entries
// larger than maxBytes are skipped with a log line rather than failing the
// whole archive; a corrupt archive fails as a single error.
func ExpandZip(data []byte, maxBytes int64) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unreadable archive: %w", err)
	}

	var entries []Entry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(f.Name))
		if !imageExtensions[ext] {
			continue
		}
		if maxBytes > 0 && f.FileInfo().Size() > maxBytes {
			logger.Warnf("Skipping oversized archive entry %s (%d bytes)", f.Name, f.FileInfo().Size())
			continue
		}

		rc, err := f.Open()
		if err != nil {
			logger.Warnf("Skipping unreadable archive entry %s: %v", f.Name, err)
			continue
		}
		payload, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			logger.Warnf("Skipping unreadable archive entry %s: %v", f.Name, err)
			continue
		}

		entries = append(entries, Entry{
			Name:    f.Name,
			MIME:    mime.TypeByExtension(ext),
			Payload: payload,
		})
	}
	return entries, nil
}
