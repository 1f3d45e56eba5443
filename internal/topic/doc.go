// Package topic implements MQTT topic filter matching.
//
// A topic is a "/"-separated list of levels. A filter uses the same grammar
// and may additionally contain two wildcards, each occupying a whole level:
//
//   - "+" matches exactly one level, including an empty one
//   - "#" matches the remaining levels (zero or more) and must be last
//
// Empty levels are significant: "a//c" has three levels, the middle one empty.
//
// Matching never fails loudly. A filter with "#" anywhere but the last level is
// ill-formed and simply matches nothing.
//
// # Usage
//
//	if topic.Matches("printer/components/#", "printer/components/bracket-01") {
//	    // ...
//	}
package topic
