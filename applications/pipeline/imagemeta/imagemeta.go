// Package imagemeta extracts dimensions, format and embedded EXIF tags
// from raw image bytes.
package imagemeta

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Info holds the decoded image properties.
type Info struct {
	Width  int
	Height int
	// Format is the uppercased registered format name, e.g. "JPEG".
	Format string
}

// Decode reads the image header and returns its dimensions and format.
func Decode(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("can't decode image config: %w", err)
	}

	return Info{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: strings.ToUpper(format),
	}, nil
}

// tagNames collects the id -> human-readable name mapping known to the
// EXIF dictionary.
type tagNames map[uint16]string

func (c tagNames) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[tag.Id] = string(name)
	return nil
}

// NormalizeTags converts the embedded EXIF table into a JSON-safe mapping
// of tag names to string or string-list values. Tags without a dictionary
// name are keyed by their numeric identifier. Absent or malformed tag data
// yields an empty mapping; this function never fails.
func NormalizeTags(data []byte) (out map[string]any) {
	out = map[string]any{}

	// Corrupt tag tables can make the parser panic.
	defer func() {
		if rec := recover(); rec != nil {
			out = map[string]any{}
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x.Tiff == nil || len(x.Tiff.Dirs) == 0 {
		return out
	}

	names := tagNames{}
	if err := x.Walk(names); err != nil {
		return map[string]any{}
	}

	for _, t := range x.Tiff.Dirs[0].Tags {
		name, ok := names[t.Id]
		if !ok {
			name = strconv.Itoa(int(t.Id))
		}

		out[name] = normalizeValue(t)
	}

	return out
}

// normalizeValue coerces a raw tag value to a string or a list of strings.
func normalizeValue(t *tiff.Tag) any {
	switch t.Format() {
	case tiff.StringVal:
		s, err := t.StringVal()
		if err != nil {
			return t.String()
		}
		return strings.ToValidUTF8(s, "�")

	case tiff.UndefVal:
		return strings.ToValidUTF8(string(t.Val), "�")

	case tiff.RatVal:
		vals := make([]string, 0, t.Count)
		for i := 0; i < int(t.Count); i++ {
			num, den, err := t.Rat2(i)
			if err != nil {
				return t.String()
			}
			vals = append(vals, fmt.Sprintf("%d/%d", num, den))
		}
		return flatten(vals)

	case tiff.IntVal:
		vals := make([]string, 0, t.Count)
		for i := 0; i < int(t.Count); i++ {
			v, err := t.Int64(i)
			if err != nil {
				return t.String()
			}
			vals = append(vals, strconv.FormatInt(v, 10))
		}
		return flatten(vals)

	case tiff.FloatVal:
		vals := make([]string, 0, t.Count)
		for i := 0; i < int(t.Count); i++ {
			v, err := t.Float(i)
			if err != nil {
				return t.String()
			}
			vals = append(vals, strconv.FormatFloat(v, 'g', -1, 64))
		}
		return flatten(vals)

	default:
		return t.String()
	}
}

// flatten unwraps single-component values; multi-component values stay
// as a list of their string representations.
func flatten(vals []string) any {
	if len(vals) == 1 {
		return vals[0]
	}

	return vals
}
