//go:build !windows

package fileutil

// restrictToCurrentUser is a no-op outside Windows; the 0600 mode passed to
// OpenFile already limits access.
func restrictToCurrentUser(string) error { return nil }
