// Package conv provides checked integer conversions for change-point
// positions and on-disk sizes.
package conv
