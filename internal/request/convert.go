package request

import "strings"

// ConvertRequest is the POST /api/convert payload.
type ConvertRequest struct {
	InputPath    string `json:"input_path"`
	OutputFormat string `json:"output_format"`
}

// Fallback outputs for conversions.
const (
	AudioOnlyOutput = "mp3"
	FallbackOutput  = "mp4"
)

type outputRule struct {
	name    string
	applies func(audioOnly bool, selected string) bool
	output  func(selected string) string
}

// outputRules is evaluated top to bottom; the first matching rule wins.
var outputRules = []outputRule{
	{
		name:    "audio-only",
		applies: func(audioOnly bool, _ string) bool { return audioOnly },
		output:  func(string) string { return AudioOnlyOutput },
	},
	{
		name:    "selected",
		applies: func(_ bool, selected string) bool { return strings.TrimSpace(selected) != "" },
		output:  func(selected string) string { return strings.TrimSpace(selected) },
	},
	{
		name:    "fallback",
		applies: func(bool, string) bool { return true },
		output:  func(string) string { return FallbackOutput },
	},
}

// ConvertOutputFormat picks the conversion target: audio-only downloads always
// become mp3, otherwise the selected format, otherwise mp4.
func ConvertOutputFormat(audioOnly bool, selectedFormat string) string {
	for _, rule := range outputRules {
		if rule.applies(audioOnly, selectedFormat) {
			return rule.output(selectedFormat)
		}
	}
	return FallbackOutput
}

// BuildConvert produces the convert payload for a previously returned artifact.
// It fails with a PreconditionError when there is no artifact yet.
func BuildConvert(priorArtifactPath string, audioOnly bool, selectedFormat string) (ConvertRequest, error) {
	if strings.TrimSpace(priorArtifactPath) == "" {
		return ConvertRequest{}, &PreconditionError{
			Operation: "convert",
			Reason:    "no completed download to convert",
		}
	}
	return ConvertRequest{
		InputPath:    priorArtifactPath,
		OutputFormat: ConvertOutputFormat(audioOnly, selectedFormat),
	}, nil
}
