// Package testutil provides test helpers for imsgexport tests.
//
//   - fs_helpers.go: filesystem helpers (WriteFile, ReadFile, MustNotExist)
//   - ptr: pointer helpers for optional fields
//   - chatdbtest: throwaway chat.db fixtures
package testutil
