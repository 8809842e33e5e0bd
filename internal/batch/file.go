package batch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fluxmedia/internal/request"
)

// Languages accepts either "en, fr" or a YAML sequence of codes and keeps
// the comma separated text form that request.SplitLanguages consumes.
type Languages string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Languages) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = Languages(node.Value)
		return nil
	case yaml.SequenceNode:
		var codes []string
		if err := node.Decode(&codes); err != nil {
			return err
		}
		*l = Languages(strings.Join(codes, ","))
		return nil
	default:
		return fmt.Errorf("line %d: subtitle_langs must be a string or a list", node.Line)
	}
}

// Item is one download intent in a batch file.
type Item struct {
	URL              string    `yaml:"url"`
	Format           string    `yaml:"format,omitempty"`
	Quality          string    `yaml:"quality,omitempty"`
	AudioOnly        bool      `yaml:"audio_only,omitempty"`
	Subtitles        bool      `yaml:"subtitles,omitempty"`
	EmbedSubtitles   bool      `yaml:"embed_subs,omitempty"`
	SubtitleLangs    Languages `yaml:"subtitle_langs,omitempty"`
	FilenameTemplate string    `yaml:"filename_template,omitempty"`
	Convert          bool      `yaml:"convert,omitempty"`
	ConvertFormat    string    `yaml:"convert_format,omitempty"`

	// keys present in the source document, so an explicit false or ""
	// is not mistaken for an omitted field
	present map[string]bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Item) UnmarshalYAML(node *yaml.Node) error {
	type plain Item
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*i = Item(decoded)
	if node.Kind == yaml.MappingNode {
		i.present = make(map[string]bool, len(node.Content)/2)
		for k := 0; k+1 < len(node.Content); k += 2 {
			i.present[node.Content[k].Value] = true
		}
	}
	return nil
}

func (i Item) has(key string) bool { return i.present[key] }

// Defaults seeds fields an item leaves out. Nil pointers mean "no default".
type Defaults struct {
	Format           string     `yaml:"format,omitempty"`
	Quality          string     `yaml:"quality,omitempty"`
	AudioOnly        *bool      `yaml:"audio_only,omitempty"`
	Subtitles        *bool      `yaml:"subtitles,omitempty"`
	EmbedSubtitles   *bool      `yaml:"embed_subs,omitempty"`
	SubtitleLangs    *Languages `yaml:"subtitle_langs,omitempty"`
	FilenameTemplate string     `yaml:"filename_template,omitempty"`
	Convert          *bool      `yaml:"convert,omitempty"`
	ConvertFormat    string     `yaml:"convert_format,omitempty"`
}

// over fills the fields d leaves unset from base.
func (d Defaults) over(base Defaults) Defaults {
	if strings.TrimSpace(d.Format) == "" {
		d.Format = base.Format
	}
	if strings.TrimSpace(d.Quality) == "" {
		d.Quality = base.Quality
	}
	if d.AudioOnly == nil {
		d.AudioOnly = base.AudioOnly
	}
	if d.Subtitles == nil {
		d.Subtitles = base.Subtitles
	}
	if d.EmbedSubtitles == nil {
		d.EmbedSubtitles = base.EmbedSubtitles
	}
	if d.SubtitleLangs == nil {
		d.SubtitleLangs = base.SubtitleLangs
	}
	if strings.TrimSpace(d.FilenameTemplate) == "" {
		d.FilenameTemplate = base.FilenameTemplate
	}
	if d.Convert == nil {
		d.Convert = base.Convert
	}
	if strings.TrimSpace(d.ConvertFormat) == "" {
		d.ConvertFormat = base.ConvertFormat
	}
	return d
}

// Fields converts the item into raw download fields.
func (i Item) Fields() request.DownloadFields {
	return request.DownloadFields{
		URL:              i.URL,
		Format:           i.Format,
		Quality:          i.Quality,
		AudioOnly:        i.AudioOnly,
		Subtitles:        i.Subtitles,
		EmbedSubtitles:   i.EmbedSubtitles,
		SubtitleLangs:    string(i.SubtitleLangs),
		FilenameTemplate: i.FilenameTemplate,
	}
}

// SelectedFormat is the format a chained convert asks for.
func (i Item) SelectedFormat() string {
	if strings.TrimSpace(i.ConvertFormat) != "" {
		return i.ConvertFormat
	}
	return i.Format
}

// withDefaults fills blank strings from d. Booleans and subtitle_langs take
// the default only when the item omits the key, so an explicit false or ""
// wins, matching the download command's flags.
func (i Item) withDefaults(d Defaults) Item {
	if strings.TrimSpace(i.Format) == "" {
		i.Format = d.Format
	}
	if strings.TrimSpace(i.Quality) == "" {
		i.Quality = d.Quality
	}
	if !i.has("audio_only") && d.AudioOnly != nil {
		i.AudioOnly = *d.AudioOnly
	}
	if !i.has("subtitles") && d.Subtitles != nil {
		i.Subtitles = *d.Subtitles
	}
	if !i.has("embed_subs") && d.EmbedSubtitles != nil {
		i.EmbedSubtitles = *d.EmbedSubtitles
	}
	if !i.has("subtitle_langs") && d.SubtitleLangs != nil {
		i.SubtitleLangs = *d.SubtitleLangs
	}
	if strings.TrimSpace(i.FilenameTemplate) == "" {
		i.FilenameTemplate = d.FilenameTemplate
	}
	if !i.has("convert") && d.Convert != nil {
		i.Convert = *d.Convert
	}
	if strings.TrimSpace(i.ConvertFormat) == "" {
		i.ConvertFormat = d.ConvertFormat
	}
	return i
}

// File is a parsed batch file.
type File struct {
	Defaults Defaults `yaml:"defaults,omitempty"`
	Items    []Item   `yaml:"items"`
}

// Resolved returns the items with file defaults applied, falling back to base
// for anything the file defaults leave unset.
func (f File) Resolved(base Defaults) []Item {
	merged := f.Defaults.over(base)
	out := make([]Item, 0, len(f.Items))
	for _, item := range f.Items {
		out = append(out, item.withDefaults(merged))
	}
	return out
}

// ErrEmpty is returned when a batch file lists no items.
var ErrEmpty = errors.New("batch file contains no items")

// Parse decodes a batch document. The document is either a mapping with
// defaults and items keys or a bare list of items.
func Parse(data []byte) (File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return File{}, fmt.Errorf("parse batch file: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return File{}, ErrEmpty
	}
	doc := root.Content[0]

	var file File
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&file.Items); err != nil {
			return File{}, fmt.Errorf("parse batch items: %w", err)
		}
	case yaml.MappingNode:
		if err := doc.Decode(&file); err != nil {
			return File{}, fmt.Errorf("parse batch file: %w", err)
		}
	default:
		return File{}, fmt.Errorf("parse batch file: expected a mapping or a list at line %d", doc.Line)
	}
	if len(file.Items) == 0 {
		return File{}, ErrEmpty
	}
	return file, nil
}

// Load reads and parses a batch file from disk.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read batch file: %w", err)
	}
	return Parse(data)
}
