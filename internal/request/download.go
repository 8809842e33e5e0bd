package request

import (
	"fmt"
	"strings"
)

// DownloadFields holds raw user input for a download, before validation.
// SubtitleLangs is the comma separated text the user typed.
type DownloadFields struct {
	URL              string
	Format           string
	Quality          string
	AudioOnly        bool
	Subtitles        bool
	EmbedSubtitles   bool
	SubtitleLangs    string
	FilenameTemplate string
}

// DownloadRequest is the POST /api/download payload.
type DownloadRequest struct {
	URL              string   `json:"url"`
	Format           Format   `json:"format"`
	Quality          string   `json:"quality"`
	AudioOnly        bool     `json:"audio_only"`
	Subtitles        bool     `json:"subtitles"`
	EmbedSubtitles   bool     `json:"embed_subs"`
	SubtitleLangs    []string `json:"subtitle_langs"`
	FilenameTemplate string   `json:"filename_template,omitempty"`
}

// BuildDownload validates fields and produces the backend payload. The URL is
// passed through exactly as given once it is known to be non-blank.
func BuildDownload(fields DownloadFields) (DownloadRequest, error) {
	if strings.TrimSpace(fields.URL) == "" {
		return DownloadRequest{}, &ValidationError{Field: "url", Reason: "a media URL is required"}
	}

	format := DefaultFormat
	if strings.TrimSpace(fields.Format) != "" {
		parsed, ok := ParseFormat(fields.Format)
		if !ok {
			return DownloadRequest{}, &ValidationError{
				Field:  "format",
				Reason: fmt.Sprintf("unsupported format %q (expected one of %s)", fields.Format, FormatList()),
			}
		}
		format = parsed
	}

	quality := strings.TrimSpace(fields.Quality)
	if quality == "" {
		quality = DefaultQuality
	}

	return DownloadRequest{
		URL:              fields.URL,
		Format:           format,
		Quality:          quality,
		AudioOnly:        fields.AudioOnly,
		Subtitles:        fields.Subtitles,
		EmbedSubtitles:   fields.EmbedSubtitles,
		SubtitleLangs:    SplitLanguages(fields.SubtitleLangs),
		FilenameTemplate: strings.TrimSpace(fields.FilenameTemplate),
	}, nil
}

// SplitLanguages splits comma separated language codes, trimming each element
// and dropping empty ones. Order and duplicates are preserved. The result is
// never nil so the payload always carries a JSON array.
func SplitLanguages(input string) []string {
	langs := make([]string, 0, strings.Count(input, ",")+1)
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			langs = append(langs, part)
		}
	}
	return langs
}

// JoinLanguages is the canonical inverse of SplitLanguages.
func JoinLanguages(langs []string) string {
	return strings.Join(langs, ",")
}
