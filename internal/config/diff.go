package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffSerialized diffs two config documents line by line. Blank lines and
// comments are ignored so only meaningful edits show up.
func DiffSerialized(previous, current []byte) string {
	return cmp.Diff(significantLines(previous), significantLines(current))
}

// RestartRequired names the settings that differ between prev and next but
// are only read at startup.
func RestartRequired(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	if !cmp.Equal(prev.Listener, next.Listener) {
		out = append(out, "listener")
	}
	if !cmp.Equal(prev.Picker, next.Picker) {
		out = append(out, "picker")
	}
	if !cmp.Equal(prev.Synth, next.Synth) {
		out = append(out, "synth")
	}
	if prev.Recording.Dir != next.Recording.Dir {
		out = append(out, "recording.dir")
	}
	return out
}

func significantLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return lines
}
