// Package fs implements the write-once object store for received DICOM
// files, laid out as <root>/<study UID>/<series UID>/<SOP instance UID>.dcm.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DicomExt = ".dcm"

// ErrDuplicateObject is returned by Put when a file for the SOP instance
// already exists. The existing bytes are never touched.
var ErrDuplicateObject = errors.New("fs: object already stored")

type ObjectStore struct {
	root string
}

func NewObjectStore(root string) *ObjectStore {
	return &ObjectStore{root: root}
}

// Root returns the storage root directory.
func (s *ObjectStore) Root() string {
	return s.root
}

// Put stores data under the study/series/instance hierarchy and returns
// the final path. The bytes are written to a temporary name first and
// published with os.Link, so a partially written file can never appear
// under the final name and the existence check is atomic even when two
// transfers of the same instance race.
func (s *ObjectStore) Put(studyUID, seriesUID, sopInstanceUID string, data []byte) (string, error) {
	for _, uid := range []string{studyUID, seriesUID, sopInstanceUID} {
		if err := validatePathSegment(uid); err != nil {
			return "", err
		}
	}

	dir := filepath.Join(s.root, studyUID, seriesUID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("fs: create series directory: %w", err)
	}

	final := filepath.Join(dir, sopInstanceUID+DicomExt)

	tmp, err := os.CreateTemp(dir, sopInstanceUID+".part")
	if err != nil {
		return "", fmt.Errorf("fs: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fs: write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("fs: close temp file: %w", err)
	}

	if err := os.Link(tmpName, final); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", ErrDuplicateObject
		}
		return "", fmt.Errorf("fs: publish object: %w", err)
	}

	return final, nil
}

// TotalBytes walks the store and sums file sizes. Collaborators derive
// aggregate storage use from this; the store keeps no incremental counter.
func (s *ObjectStore) TotalBytes() (int64, error) {
	var total int64
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}

func validatePathSegment(uid string) error {
	if uid == "" {
		return errors.New("fs: empty identifier")
	}
	if strings.ContainsAny(uid, `/\`) || uid == "." || uid == ".." {
		return fmt.Errorf("fs: identifier %q is not a valid path segment", uid)
	}
	return nil
}
