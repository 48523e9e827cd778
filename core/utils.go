package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// CleanString trims `s`, collapses inner runs of whitespace into single spaces and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanText trims free-form text, keeping its line breaks and indentation.
func CleanText(s string) string {
	return strings.TrimSpace(s)
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run,
// so the current working directory is only a starting point.
// Falls back to the working directory when no project root is found (eg. deployed binaries).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// Slugify turns `s` into a lowercase, hyphen separated ASCII slug.
// Accented and non-latin letters are transliterated.
func Slugify(s string) string {
	return slug.Make(strings.ReplaceAll(s, "_", " "))
}
