package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/conneroisu/appgen/internal/errors"
	"github.com/conneroisu/appgen/internal/plugins"
)

// pluginMeta is the optional <plugin>.meta.yaml sidecar next to a plugin file.
type pluginMeta struct {
	Name      string   `yaml:"name"`
	Mode      string   `yaml:"mode"`
	DependsOn []string `yaml:"depends_on"`
	Order     *int     `yaml:"order"`
	Enforce   string   `yaml:"enforce"`
	Parallel  bool     `yaml:"parallel"`
}

func loadPluginMeta(file string) (*pluginMeta, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapIO(err, apperrors.ErrCodeScanFailed, "failed to read plugin metadata").WithFile(file)
	}

	var meta pluginMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, apperrors.ErrCodeInvalidPluginMeta,
			"failed to parse plugin metadata").WithFile(file)
	}
	return &meta, nil
}

// apply overrides the file-derived fields of d with the sidecar values.
func (m *pluginMeta) apply(d *plugins.Descriptor) error {
	if m.Name != "" {
		d.Name = m.Name
	}
	if m.Mode != "" {
		mode, err := plugins.ParseMode(m.Mode)
		if err != nil {
			return err
		}
		d.Mode = mode
	}
	if m.Order != nil {
		d.Order = m.Order
	}
	if m.Enforce != "" {
		enforce, err := plugins.ParseEnforce(m.Enforce)
		if err != nil {
			return err
		}
		d.Enforce = enforce
	}
	for _, dep := range m.DependsOn {
		if dep == "" {
			return fmt.Errorf("empty dependency name")
		}
	}
	d.DependsOn = append(d.DependsOn, m.DependsOn...)
	d.Parallel = d.Parallel || m.Parallel
	return nil
}
