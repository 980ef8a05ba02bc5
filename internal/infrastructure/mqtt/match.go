package mqtt

import "strings"

// topicSeparator splits topics and patterns into segments.
const topicSeparator = "/"

// Wildcard segments per the MQTT topic filter syntax.
const (
	// WildcardSingle matches exactly one path segment.
	WildcardSingle = "+"

	// WildcardMulti matches one or more trailing segments.
	// Only valid as the final segment of a pattern.
	WildcardMulti = "#"
)

// Match reports whether topic matches the subscription pattern.
//
// Matching rules:
//   - Both strings are split on "/".
//   - A "#" must be the final pattern segment; it matches the preceding
//     prefix plus one or more remaining topic segments. "devices/#" matches
//     "devices/abc" and "devices/abc/telemetry" but not bare "devices".
//   - Without "#", segment counts must be equal.
//   - A "+" segment matches any single non-empty topic segment.
//   - Any other segment must be equal literally.
func Match(pattern, topic string) bool {
	patternParts := strings.Split(pattern, topicSeparator)
	topicParts := strings.Split(topic, topicSeparator)

	last := len(patternParts) - 1
	if hasMultiWildcard(patternParts) {
		if patternParts[last] != WildcardMulti {
			// "#" anywhere but the end makes the pattern invalid; it matches nothing.
			return false
		}
		// "#" absorbs one or more segments, so the topic must extend past the prefix.
		if len(topicParts) <= last {
			return false
		}
		return segmentsMatch(patternParts[:last], topicParts[:last])
	}

	if len(topicParts) != len(patternParts) {
		return false
	}
	return segmentsMatch(patternParts, topicParts)
}

// hasMultiWildcard reports whether any pattern segment is "#".
func hasMultiWildcard(parts []string) bool {
	for _, p := range parts {
		if p == WildcardMulti {
			return true
		}
	}
	return false
}

// segmentsMatch compares pattern segments against topic segments pairwise.
// Slices must be the same length.
func segmentsMatch(patternParts, topicParts []string) bool {
	for i, pp := range patternParts {
		if pp == WildcardSingle {
			if topicParts[i] == "" {
				return false
			}
			continue
		}
		if pp != topicParts[i] {
			return false
		}
	}
	return true
}
