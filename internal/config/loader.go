package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PackageKey is the package.json key holding the descriptor.
const PackageKey = "perfomatic"

// DescriptorNames lists the files Discover looks for, in priority order.
var DescriptorNames = []string{"perfomatic.yaml", "perfomatic.yml", "perfomatic.json", "package.json"}

// LoadFile reads a project descriptor. package.json files contribute their
// "perfomatic" key; other files are the descriptor itself. The format follows
// the extension (.yaml/.yml, .json) or, failing that, the first byte.
func LoadFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, wrapConfigError("", err, "read descriptor %s", path)
	}
	if filepath.Base(path) == "package.json" {
		return parsePackageJSON(data)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes descriptor bytes. ext is a format hint; empty means sniff.
func Parse(data []byte, ext string) (Descriptor, error) {
	decode := decodeYAML
	switch strings.ToLower(ext) {
	case ".json":
		decode = decodeJSON
	case ".yaml", ".yml":
	default:
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			decode = decodeJSON
		}
	}
	var d Descriptor
	if err := decode(data, &d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Discover finds the first descriptor in dir. It returns the path it used.
func Discover(dir string) (string, Descriptor, error) {
	for _, name := range DescriptorNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", Descriptor{}, wrapConfigError("", err, "stat %s", path)
		}
		d, err := LoadFile(path)
		return path, d, err
	}
	return "", Descriptor{}, newConfigError("", "no descriptor found in %s (looked for %s)", dir, strings.Join(DescriptorNames, ", "))
}

func parsePackageJSON(data []byte) (Descriptor, error) {
	var pkg struct {
		Perfomatic *Descriptor `json:"perfomatic"`
	}
	if err := decodeJSON(data, &pkg); err != nil {
		return Descriptor{}, err
	}
	if pkg.Perfomatic == nil || len(pkg.Perfomatic.URLs) == 0 {
		return Descriptor{}, newConfigError("urls", "no %s config with urls in package.json found, please add one to continue", PackageKey)
	}
	return *pkg.Perfomatic, nil
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return wrapConfigError("", err, "parse descriptor json")
	}
	return nil
}

func decodeYAML(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return wrapConfigError("", err, "parse descriptor yaml")
	}
	return nil
}
