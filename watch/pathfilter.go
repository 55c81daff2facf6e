package watch

import (
	"path/filepath"
	"strings"
)

// Category is a class of paths the watcher ignores
type Category int

const (
	// CategoryHidden - dotfiles and dotdirs
	CategoryHidden Category = 1 << iota

	// CategoryBackup - editor backups and temp files (~file, *.swp, *.tmp)
	CategoryBackup

	// CategoryVCS - version control directories
	CategoryVCS

	// CategoryIDE - IDE and editor metadata
	CategoryIDE

	// CategoryDependencies - package manager directories
	CategoryDependencies

	// CategoryBuild - build outputs and compiled artifacts
	CategoryBuild

	// CategoryOS - OS-generated files
	CategoryOS

	// CategoryBinary - media, archives and other non-text content
	CategoryBinary

	// CategoryReserved - root-level names owned by filehistory itself
	CategoryReserved
)

const (
	ExcludeNone Category = 0

	// ExcludeDefault is what the watcher uses unless told otherwise
	ExcludeDefault = CategoryHidden | CategoryBackup | CategoryVCS | CategoryIDE |
		CategoryDependencies | CategoryBuild | CategoryOS | CategoryBinary | CategoryReserved
)

// PathFilter decides which project-relative paths are not tracked
type PathFilter struct {
	exclusions Category
	reserved   map[string]bool
}

// NewPathFilter creates a filter. reserved lists root-level names excluded
// under CategoryReserved, such as the snapshot directory.
func NewPathFilter(exclusions Category, reserved ...string) *PathFilter {
	f := &PathFilter{exclusions: exclusions, reserved: make(map[string]bool)}
	for _, r := range reserved {
		r = strings.Trim(filepath.ToSlash(filepath.Clean(r)), "/")
		if r == "" || r == "." || strings.HasPrefix(r, "../") {
			continue
		}
		f.reserved[strings.ToLower(strings.SplitN(r, "/", 2)[0])] = true
	}
	return f
}

// DefaultPathFilter excludes the default categories plus reserved
func DefaultPathFilter(reserved ...string) *PathFilter {
	return NewPathFilter(ExcludeDefault, reserved...)
}

// IsExcluded checks every component of a project-relative path
func (f *PathFilter) IsExcluded(path string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return true
		}
		if f.isExcludedName(part, i == 0) {
			return true
		}
	}
	return false
}

func (f *PathFilter) isExcludedName(name string, atRoot bool) bool {
	lower := strings.ToLower(name)

	if f.exclusions&CategoryReserved != 0 && atRoot && f.reserved[lower] {
		return true
	}

	if f.exclusions&CategoryHidden != 0 && strings.HasPrefix(name, ".") {
		return true
	}

	if f.exclusions&CategoryVCS != 0 && vcsNames[lower] {
		return true
	}

	if f.exclusions&CategoryIDE != 0 && (ideNames[lower] || hasAnySuffix(lower, ideSuffixes)) {
		return true
	}

	if f.exclusions&CategoryBackup != 0 {
		if strings.HasPrefix(name, "~") || strings.HasSuffix(name, "~") {
			return true
		}
		// emacs lock and autosave files
		if strings.HasPrefix(name, ".#") || strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#") {
			return true
		}
		if hasAnySuffix(lower, backupSuffixes) {
			return true
		}
	}

	if f.exclusions&CategoryDependencies != 0 && dependencyNames[lower] {
		return true
	}

	if f.exclusions&CategoryBuild != 0 && (buildNames[lower] || hasAnySuffix(lower, buildSuffixes)) {
		return true
	}

	if f.exclusions&CategoryOS != 0 {
		if osNames[lower] || hasAnyPrefix(name, osPrefixes) {
			return true
		}
	}

	if f.exclusions&CategoryBinary != 0 && hasAnySuffix(lower, binarySuffixes) {
		return true
	}

	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

var vcsNames = map[string]bool{
	".git":   true,
	".svn":   true,
	".hg":    true,
	".bzr":   true,
	"cvs":    true,
	"_darcs": true,
}

var ideNames = map[string]bool{
	".idea":     true,
	".vscode":   true,
	".vs":       true,
	".settings": true,
	".fleet":    true,
	".cursor":   true,
}

var ideSuffixes = []string{
	".iml",
	".suo",
	".user",
}

var backupSuffixes = []string{
	".bak",
	".swp",
	".swo",
	".swx",
	".tmp",
	".temp",
	".orig",
	".rej",
}

var dependencyNames = map[string]bool{
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
	"__pycache__":      true,
	"site-packages":    true,
	"venv":             true,
	".venv":            true,
	".gradle":          true,
	".m2":              true,
	"pods":             true,
}

var buildNames = map[string]bool{
	"dist":   true,
	"build":  true,
	"out":    true,
	"target": true,
	"bin":    true,
	"obj":    true,
}

var buildSuffixes = []string{
	".o",
	".a",
	".so",
	".dylib",
	".dll",
	".exe",
	".class",
	".jar",
	".pyc",
	".wasm",
}

var osNames = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	"desktop.ini": true,
	"lost+found":  true,
}

var osPrefixes = []string{
	"._",
	"~$",
}

var binarySuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".heic", ".ico", ".bmp",
	".mp3", ".mp4", ".mov", ".wav", ".flac",
	".zip", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar", ".tar",
	".pdf", ".sqlite", ".db",
	".woff", ".woff2", ".ttf",
}
