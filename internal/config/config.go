// Package config centralizes project-wide settings. Packages read these
// directly; cmd/m2b overrides them from flags before any parsing starts.
package config

import "os"

var (
	// StrictMeta aborts the whole conversion on an unrecognized meta event
	// type instead of skipping it by its declared length.
	StrictMeta bool

	// SplitFormat0 explodes a format-0 file's single track into one
	// synthetic track per MIDI channel after note assembly.
	SplitFormat0 bool
)

func init() {
	StrictMeta = envBool("M2B_STRICT_META")
	SplitFormat0 = envBool("M2B_SPLIT_FORMAT0")
}

func envBool(name string) bool {
	switch os.Getenv(name) {
	case "", "0", "false", "no":
		return false
	}
	return true
}
