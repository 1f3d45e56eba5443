package topic

import "strings"

// Filter grammar tokens.
const (
	// Separator splits a topic into levels.
	Separator = "/"

	// SingleLevel matches exactly one level.
	SingleLevel = "+"

	// MultiLevel matches the remaining levels and must be the last level.
	MultiLevel = "#"
)

// Matches reports whether topic is matched by filter.
//
// Both arguments are split on "/" and compared level by level. A literal level
// must equal the topic level byte for byte, "+" accepts any single level and a
// trailing "#" accepts whatever is left, including nothing (so "a/#" matches
// "a"). Without a trailing "#" the level counts must be equal.
func Matches(filter, topic string) bool {
	filterLevels := strings.Split(filter, Separator)
	topicLevels := strings.Split(topic, Separator)
	last := len(filterLevels) - 1

	for i, level := range filterLevels {
		if level == MultiLevel {
			return i == last
		}

		if i >= len(topicLevels) {
			return false
		}

		if level == SingleLevel {
			continue
		}

		if level != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}

// ValidTopic reports whether t can be published to: non-empty and free of
// wildcard characters.
func ValidTopic(t string) bool {
	return t != "" && !strings.ContainsAny(t, SingleLevel+MultiLevel)
}

// ValidFilter reports whether f is a well-formed subscription filter.
//
// Wildcards must occupy a whole level and "#" may only appear last.
func ValidFilter(f string) bool {
	if f == "" {
		return false
	}

	levels := strings.Split(f, Separator)
	for i, level := range levels {
		switch {
		case level == MultiLevel:
			if i != len(levels)-1 {
				return false
			}
		case level == SingleLevel:
		case strings.ContainsAny(level, SingleLevel+MultiLevel):
			return false
		}
	}

	return true
}
