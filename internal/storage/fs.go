package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data/banks"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(name string, r io.Reader) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	dst := filepath.Join(s.base, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *FSStore) Get(name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.base, name))
}

// Path returns the absolute path of a stored bank, or an error if the file
// does not exist.
func (s *FSStore) Path(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	p := filepath.Join(s.base, name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// List returns the stored bank file names, sorted.
func (s *FSStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func validName(name string) error {
	if name == "" {
		return errors.New("empty bank name")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return errors.New("bank name must not contain path separators")
	}
	return nil
}
