// Package storage holds the metadata a node advertises, validated against
// the node metadata schema and safe for concurrent use.
package storage
