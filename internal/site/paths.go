// internal/site/paths.go
//
// Graph node paths for site and mapping records.
//
// The owner's record subtree hangs off the "~" address prefix the backend
// uses for identity-rooted data; the alias mapping lives in a flat global
// subtree so resolving a display name never enumerates site records.

package site

// RecordPath returns the node path of one owner's page record.
func RecordPath(ownerAddr, pageName string) string {
	return "~" + ownerAddr + "/sites/" + pageName
}

// SitesPath returns the subtree holding all of an owner's page records,
// suitable for subscription.
func SitesPath(ownerAddr string) string {
	return "~" + ownerAddr + "/sites"
}

// MappingPath returns the node path of the global alias mapping.
func MappingPath(alias string) string {
	return "dweb/users/" + alias
}

// AliasPath returns the backend's own identity-alias node, the secondary
// lookup used when no mapping record exists.
func AliasPath(alias string) string {
	return "~@" + alias
}
