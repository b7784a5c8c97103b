// Package sanitize turns arbitrary media titles into filesystem-safe names.
//
// The mapping is embedded in public download URLs, so it must stay stable:
// illegal characters become their fullwidth counterparts instead of being
// dropped, which keeps titles readable.
package sanitize

import (
	"strings"
	"unicode"
)

// illegalChars are rejected by at least one common filesystem.
const illegalChars = `/\?%*:|"<>`

// fullwidthOffset shifts an ASCII codepoint into the fullwidth forms block.
const fullwidthOffset = 0xFF00 - 0x0020

// fullwidthFullStop replaces dots in names made only of dots.
const fullwidthFullStop = '．'

// ReservedPrefix is put in front of names that collide with device names.
const ReservedPrefix = "__"

var reservedNames = map[string]struct{}{
	"CON": {}, "CONIN$": {}, "CONOUT$": {}, "PRN": {}, "AUX": {}, "CLOCK$": {}, "NUL": {},
	"COM0": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT0": {}, "LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	"LST": {}, "KEYBD$": {}, "SCREEN$": {}, "$IDLE$": {}, "CONFIG$": {},
}

// Sanitize returns a filesystem-safe version of title. It never fails.
func Sanitize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case isControl(r):
			continue
		case strings.ContainsRune(illegalChars, r):
			b.WriteRune(r + fullwidthOffset)
		default:
			b.WriteRune(r)
		}
	}

	name := strings.TrimRightFunc(b.String(), unicode.IsSpace)
	if name != "" && strings.Trim(name, ".") == "" {
		return strings.Repeat(string(fullwidthFullStop), len(name))
	}
	name = strings.TrimRight(name, ".")

	if IsReserved(name) {
		return ReservedPrefix + name
	}
	return name
}

// IsReserved reports whether name, without its extension, is a device name
// on common filesystems. The comparison ignores case.
func IsReserved(name string) bool {
	_, ok := reservedNames[strings.ToUpper(stem(name))]
	return ok
}

// stem drops the extension. Leading dots never start an extension, so
// ".profile" is its own stem.
func stem(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || strings.Trim(name[:i], ".") == "" {
		return name
	}
	return name[:i]
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7F
}
