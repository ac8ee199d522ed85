package extract

import (
	"strconv"
	"strings"
)

// densityScale converts an "Nx" density descriptor into a width comparable
// with "Nw" descriptors.
const densityScale = 1000

// LargestFromSrcset returns the URL of the widest source in a srcset
// attribute, or "" when no source carries a usable descriptor.
func LargestFromSrcset(srcset string) string {
	var (
		largestURL   string
		largestWidth float64
	)

	for _, source := range strings.Split(srcset, ",") {
		fields := strings.Fields(source)
		if len(fields) == 0 {
			continue
		}
		candidate := fields[0]
		descriptor := ""
		if len(fields) > 1 {
			descriptor = strings.ToLower(fields[1])
		}

		var width float64
		switch {
		case strings.HasSuffix(descriptor, "w"):
			if n, err := strconv.Atoi(strings.TrimSuffix(descriptor, "w")); err == nil {
				width = float64(n)
			}
		case strings.HasSuffix(descriptor, "x"):
			if f, err := strconv.ParseFloat(strings.TrimSuffix(descriptor, "x"), 64); err == nil {
				width = f * densityScale
			}
		}

		if width > largestWidth {
			largestWidth = width
			largestURL = candidate
		}
	}

	return largestURL
}
