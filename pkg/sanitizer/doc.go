// Package sanitizer normalizes caller supplied reservation fields before
// validation and storage.
//
// Every function is idempotent and reports bad input by returning an empty
// value rather than an error.
package sanitizer
