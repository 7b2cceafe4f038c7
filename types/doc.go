// Package types defines shared types for the embedflow pipeline: the error
// taxonomy and the vector/cache value representations exchanged between
// components.
package types
