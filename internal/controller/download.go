package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/feedspot/feedmerge/internal/mergesdk"
)

const (
	downloadBaseName = "merged_feedspot"
	partFilePattern  = ".feedmerge-*.part"
	maxNameAttempts  = 1000
)

// DownloadName is the file name of the merged result: merged_feedspot.xlsx
// for excel and merged_feedspot.csv for anything else.
func DownloadName(downloadType mergesdk.DownloadType) string {
	return downloadBaseName + "." + downloadType.Extension()
}

// saveDownload writes body into dir under name, or under "name (N).ext" when
// name is taken. The body goes to a part file first; the part file is removed
// on every path.
func saveDownload(dir, name string, body []byte) (string, error) {
	part, err := os.CreateTemp(dir, partFilePattern)
	if err != nil {
		return "", err
	}
	// no-op once renamed into place
	defer os.Remove(part.Name())

	if _, err := part.Write(body); err != nil {
		part.Close()
		return "", err
	}
	if err := part.Chmod(0o644); err != nil {
		part.Close()
		return "", err
	}
	if err := part.Close(); err != nil {
		return "", err
	}

	dest, err := availablePath(dir, name)
	if err != nil {
		return "", err
	}

	if err := os.Rename(part.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// availablePath picks name, or "base (1).ext", "base (2).ext"... the way a
// browser does for repeated downloads.
func availablePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; i <= maxNameAttempts; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
