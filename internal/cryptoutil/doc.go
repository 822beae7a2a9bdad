// Package cryptoutil holds the hashing helpers behind content identity:
// the store digest and constant-time comparison of client supplied
// digests such as If-None-Match.
package cryptoutil
