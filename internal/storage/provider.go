// Package storage defines the seed directory file-system abstraction.
package storage

import "time"

// Ext is the extension of document files.
const Ext = ".json"

// File describes one document file.
type File struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Provider is the interface for seed directory file operations.
type Provider interface {
	// List returns metadata for every .json file under dir (relative to root).
	List(dir string) ([]File, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Root returns the absolute directory the provider serves.
	Root() string
}
