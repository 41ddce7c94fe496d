package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/appgen/internal/errors"
)

// ManifestFile is the name of the hash manifest kept in the build directory.
const ManifestFile = "manifest.yaml"

// Manifest records the content hash of every generated file.
type Manifest struct {
	Version string            `yaml:"version"`
	Files   map[string]string `yaml:"files"`
}

// NewManifest returns an empty manifest stamped with version.
func NewManifest(version string) *Manifest {
	return &Manifest{Version: version, Files: make(map[string]string)}
}

// LoadManifest reads the manifest from buildDir. A missing manifest yields an
// empty one.
func LoadManifest(buildDir string) (*Manifest, error) {
	path := filepath.Join(buildDir, ManifestFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewManifest(""), nil
	}
	if err != nil {
		return nil, apperrors.WrapIO(err, apperrors.ErrCodeFileNotFound, "failed to read manifest").WithFile(path)
	}

	m := NewManifest("")
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed,
			fmt.Sprintf("manifest %s is corrupt", path)).WithFile(path)
	}
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	return m, nil
}

// Save writes the manifest to buildDir.
func (m *Manifest) Save(buildDir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return apperrors.NewInternalError(apperrors.ErrCodeInternalError, "failed to encode manifest", err)
	}
	return writeFile(filepath.Join(buildDir, ManifestFile), data)
}

// Filenames returns the recorded files in lexical order.
func (m *Manifest) Filenames() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeFile replaces path atomically through a temp file in the same
// directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed, "failed to create directory").WithFile(dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed, "failed to create temp file").WithFile(path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed, "failed to write file").WithFile(path)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed, "failed to write file").WithFile(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.WrapIO(err, apperrors.ErrCodeWriteFailed, "failed to replace file").WithFile(path)
	}
	return nil
}
