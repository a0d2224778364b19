package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrFontUnavailable indicates that no candidate glyph resource could be
// loaded. Dispatching a fax without a Japanese glyph set must fail rather
// than silently produce an unreadable document.
var ErrFontUnavailable = errors.New("render: japanese glyph set unavailable")

// Font is a loaded TrueType resource. The same resource backs both the PDF
// renderer and the seal generator.
type Font struct {
	Name string
	Path string
	Data []byte
}

// FontCandidates returns the ordered list of glyph resources to try: the
// explicit override first, then the bundled IPAex fonts, then common system
// locations for IPA gothic fonts.
func FontCandidates(override string) []string {
	var candidates []string
	if strings.TrimSpace(override) != "" {
		candidates = append(candidates, strings.TrimSpace(override))
	}
	return append(candidates,
		"fonts/ipaexg.ttf",
		"fonts/ipaexm.ttf",
		"/usr/share/fonts/opentype/ipaexfont-gothic/ipaexg.ttf",
		"/usr/share/fonts/opentype/ipafont-gothic/ipag.ttf",
		"/usr/share/fonts/truetype/fonts-japanese-gothic.ttf",
	)
}

// LoadFont walks the candidate list in order and returns the first loadable
// TrueType resource. Unreadable paths and files that are not TrueType data
// are skipped; when nothing loads the error wraps ErrFontUnavailable and
// names every path tried.
func LoadFont(candidates ...string) (*Font, error) {
	var tried []string
	for _, path := range candidates {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		tried = append(tried, path)

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !isTrueType(data) {
			continue
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return &Font{Name: name, Path: path, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: tried %s", ErrFontUnavailable, strings.Join(tried, ", "))
}

func isTrueType(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch binary.BigEndian.Uint32(data[:4]) {
	case 0x00010000, 0x74727565: // TrueType outlines, 'true'
		return true
	default:
		return false
	}
}
