// Package audio selects replacement tracks for videos and plans how a
// track must be looped and trimmed to cover a video's duration exactly.
package audio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Track is one audio asset from the audio folder.
type Track struct {
	Path string
	Name string // basename including extension
}

// ScanDir lists the audio assets under dir with a recognized extension,
// sorted lexicographically by filename. Matching depends on this order
// being stable, so callers must not reorder the result. A missing
// directory yields an empty listing.
func ScanDir(dir string, exts []string) ([]Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	tracks := lo.FilterMap(entries, func(e os.DirEntry, _ int) (Track, bool) {
		if e.IsDir() {
			return Track{}, false
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !lo.Contains(exts, ext) {
			return Track{}, false
		}
		return Track{Path: filepath.Join(dir, e.Name()), Name: e.Name()}, true
	})

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Name < tracks[j].Name })
	return tracks, nil
}

// Match picks the track for a video. An exact case-insensitive basename
// match (extensions stripped on both sides) wins; otherwise the first
// track of the sorted listing is used. ok is false when the listing is
// empty, in which case the video keeps its original audio.
//
// The result is a pure function of (videoName, tracks): re-running with
// the same listing always yields the same track.
func Match(videoName string, tracks []Track) (Track, bool) {
	if len(tracks) == 0 {
		return Track{}, false
	}

	base := strings.ToLower(stripExt(videoName))
	if t, found := lo.Find(tracks, func(t Track) bool {
		return strings.ToLower(stripExt(t.Name)) == base
	}); found {
		return t, true
	}

	return tracks[0], true
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
