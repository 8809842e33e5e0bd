package request

import "strings"

// Format is an output container or codec the backend can produce.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatMP4  Format = "mp4"
	FormatWAV  Format = "wav"
	FormatMKV  Format = "mkv"
	FormatWebM Format = "webm"
	FormatM4A  Format = "m4a"
	FormatOpus Format = "opus"
)

// DefaultFormat is used when the caller leaves the format blank.
const DefaultFormat = FormatMP4

// DefaultQuality is the format-selector sentinel meaning "best available".
const DefaultQuality = "best"

var formats = []Format{FormatMP3, FormatMP4, FormatWAV, FormatMKV, FormatWebM, FormatM4A, FormatOpus}

// Formats returns the supported formats in display order.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// FormatList renders the supported formats as a comma separated string.
func FormatList() string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// ParseFormat matches value case-insensitively against the supported set.
func ParseFormat(value string) (Format, bool) {
	candidate := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, f := range formats {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

// IsAudio reports whether the format carries audio only.
func (f Format) IsAudio() bool {
	switch f {
	case FormatMP3, FormatWAV, FormatM4A, FormatOpus:
		return true
	default:
		return false
	}
}

func (f Format) String() string { return string(f) }
