// Package stream reads media files from the configured roots. Every lookup
// goes through Resolve, which refuses any identifier that would escape its
// root; traversal sequences surface as ErrInvalidPath before a single
// filesystem call is made.
package stream

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath reports an identifier that resolves outside its root.
var ErrInvalidPath = errors.New("invalid path")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Resolve joins parts under root and canonicalizes the result. It returns
// ErrInvalidPath unless the resolved path stays within root.
func Resolve(root string, parts ...string) (string, error) {
	root = filepath.Clean(root)
	elems := append([]string{root}, parts...)
	full := filepath.Clean(filepath.Join(elems...))

	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", ErrInvalidPath
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// ReadManifest loads the raw manifest for a media ID: {root}/{id}/{id}.mpd.
func ReadManifest(root, mediaID string) ([]byte, error) {
	path, err := Resolve(root, mediaID, mediaID+".mpd")
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ReadChunk loads one binary segment: {root}/{id}/{name}.
func ReadChunk(root, mediaID, name string) ([]byte, error) {
	path, err := Resolve(root, mediaID, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ReadSubtitles loads {root}/{id}/subtitles/{name} and guarantees the
// returned bytes start with a UTF-8 byte-order mark.
func ReadSubtitles(root, mediaID, name string) ([]byte, error) {
	path, err := Resolve(root, mediaID, "subtitles", name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		data = append(append(make([]byte, 0, len(utf8BOM)+len(data)), utf8BOM...), data...)
	}
	return data, nil
}

// ReadCover loads cover art: {root}/{id}.png.
func ReadCover(root, id string) ([]byte, error) {
	path, err := Resolve(root, id+".png")
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// SubtitleLanguages lists the language codes with a .vtt file under
// {root}/{id}/subtitles, sorted by filename. Errors collapse to an empty
// list: a media without subtitles is normal, not a failure.
func SubtitleLanguages(root, mediaID string) []string {
	dir, err := Resolve(root, mediaID, "subtitles")
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".vtt"); ok && name != "" {
			langs = append(langs, name)
		}
	}
	return langs
}
