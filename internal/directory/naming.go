package directory

import "strings"

// AttributeName converts one snake_case attribute segment to the remote
// protocol's lowerCamelCase. Segments without underscores pass through
// unchanged, so already-camel names are stable under repeated application.
func AttributeName(segment string) string {
	if !strings.Contains(segment, "_") {
		return segment
	}
	parts := strings.Split(segment, "_")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() == 0 && i == 0 {
			b.WriteString(strings.ToLower(part[:1]) + part[1:])
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// AttributePath applies AttributeName to each dot-separated segment of an
// attribute path, leaving index suffixes like "[0]" alone.
func AttributePath(path string) string {
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		suffix := ""
		if bi := strings.Index(seg, "["); bi >= 0 {
			suffix = seg[bi:]
			seg = seg[:bi]
		}
		segments[i] = AttributeName(seg) + suffix
	}
	return strings.Join(segments, ".")
}
