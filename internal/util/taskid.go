package util

import "strings"

// GroupDelimiter separates a group prefix from a child task id.
const GroupDelimiter = ":"

// ContributorPrefix namespaces tasks injected by a contributor.
func ContributorPrefix(contributorID string) string {
	return "cuenv:contributor:" + contributorID
}

// IsGroupMember reports whether taskID was declared under the given group
// prefix (prefix + delimiter + anything).
func IsGroupMember(taskID, prefix string) bool {
	return strings.HasPrefix(taskID, prefix+GroupDelimiter)
}
