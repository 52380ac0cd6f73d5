package storage

import "io"

// BankStore holds the GIFT bank files the server can load. Names are flat:
// path separators are rejected on write.
type BankStore interface {
	Put(name string, r io.Reader) (string, error) // returns the absolute path
	Get(name string) (io.ReadCloser, error)
	Path(name string) (string, error)
	List() ([]string, error)
}
