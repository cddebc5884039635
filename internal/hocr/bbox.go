package hocr

import (
	"fmt"
	"strconv"
	"strings"
)

const bboxTag = "bbox"

// ParseBBox extracts the bbox property from an hOCR title attribute such as
// "bbox 10 20 30 40; x_wconf 93". The tag is stripped and the remaining four
// whitespace-separated integers become left, top, right and bottom.
func ParseBBox(title string) (BBox, error) {
	for _, prop := range strings.Split(title, ";") {
		prop = strings.TrimSpace(prop)
		fields := strings.Fields(prop)
		if len(fields) == 0 || fields[0] != bboxTag {
			continue
		}
		if len(fields) != 5 {
			return BBox{}, fmt.Errorf("bbox wants 4 coordinates, got %d in %q", len(fields)-1, prop)
		}
		var coords [4]int
		for i, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return BBox{}, fmt.Errorf("bbox coordinate %q: %w", f, err)
			}
			coords[i] = v
		}
		box := BBox{Left: coords[0], Top: coords[1], Right: coords[2], Bottom: coords[3]}
		if !box.Valid() {
			return BBox{}, fmt.Errorf("bbox %v is not well ordered", coords)
		}
		return box, nil
	}
	return BBox{}, fmt.Errorf("no bbox property in title %q", title)
}
