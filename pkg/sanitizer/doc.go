// Package sanitizer provides input normalization functions for slot and
// directory data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization happens once, in the service layer before validation and
// storage, so repository code never sees unnormalized values.
package sanitizer
