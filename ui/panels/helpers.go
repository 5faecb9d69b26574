package panels

import (
	"fmt"
	"path/filepath"
	"strings"

	pcbimage "pcb-studio/internal/image"
	"pcb-studio/pkg/geometry"
)

func pt(x, y float64) geometry.Point2D {
	return geometry.Point2D{X: x, Y: y}
}

// layerSummary formats a one-line description of a loaded layer.
func layerSummary(l *pcbimage.Layer, empty string) string {
	if l == nil || l.Image == nil {
		return empty
	}
	s := fmt.Sprintf("%s (%dx%d)", filepath.Base(l.Path), l.Width(), l.Height())
	if l.DPI > 0 {
		s += fmt.Sprintf(", %.0f DPI", l.DPI)
	}
	return s
}

// naturalLess compares two strings using natural numeric ordering, so
// designators sort as U1, U2, U10 rather than U1, U10, U2.
func naturalLess(a, b string) bool {
	chunksA := splitNatural(a)
	chunksB := splitNatural(b)
	for i := 0; i < len(chunksA) && i < len(chunksB); i++ {
		ca, cb := chunksA[i], chunksB[i]
		if isNumeric(ca) && isNumeric(cb) {
			na, nb := parseNum(ca), parseNum(cb)
			if na != nb {
				return na < nb
			}
		} else {
			cmp := strings.Compare(strings.ToUpper(ca), strings.ToUpper(cb))
			if cmp != 0 {
				return cmp < 0
			}
		}
	}
	return len(chunksA) < len(chunksB)
}

func splitNatural(s string) []string {
	var chunks []string
	var current strings.Builder
	wasDigit := false
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != wasDigit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteRune(r)
		wasDigit = isDigit
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func parseNum(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
