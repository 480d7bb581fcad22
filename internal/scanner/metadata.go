package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/binmodlabs/py2binmod/internal/project"
)

// pyprojectTOML mirrors the parts of PEP 621 pyproject.toml we consume.
type pyprojectTOML struct {
	Project *projectSection `toml:"project"`
	Tool    *toolSection    `toml:"tool"`
}

type projectSection struct {
	Name           string        `toml:"name"`
	Version        string        `toml:"version"`
	Description    string        `toml:"description"`
	RequiresPython string        `toml:"requires-python"`
	Authors        []authorEntry `toml:"authors"`
	License        tomlLicense   `toml:"license"`
}

type authorEntry struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type toolSection struct {
	Py2Binmod *toolConfigTOML `toml:"py2binmod"`
}

type toolConfigTOML struct {
	Venv       string `toml:"venv"`
	ModuleRoot string `toml:"module-root"`
	Module     string `toml:"module"`
}

// tomlLicense accepts both license = "MIT" and license = { text = "..." }
// or { file = "..." } forms.
type tomlLicense struct {
	value string
}

func (l *tomlLicense) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		l.value = t
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			l.value = s
		} else if s, ok := t["file"].(string); ok {
			l.value = s
		}
	}
	return nil
}

// ReadMetadata parses <projectDir>/pyproject.toml. A missing file or a
// missing [project] table is an error: without a name and version there is
// nothing to label the generated crate with.
func ReadMetadata(projectDir string) (project.Metadata, error) {
	path := filepath.Join(projectDir, "pyproject.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Metadata{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw pyprojectTOML
	if err := toml.Unmarshal(data, &raw); err != nil {
		return project.Metadata{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if raw.Project == nil || raw.Project.Name == "" {
		return project.Metadata{}, fmt.Errorf("%s: missing [project] name", path)
	}
	if raw.Project.Version == "" {
		return project.Metadata{}, fmt.Errorf("%s: missing [project] version", path)
	}

	meta := project.Metadata{
		Name:           raw.Project.Name,
		Version:        raw.Project.Version,
		Description:    raw.Project.Description,
		RequiresPython: raw.Project.RequiresPython,
		License:        raw.Project.License.value,
	}
	for _, a := range raw.Project.Authors {
		switch {
		case a.Name != "":
			meta.Authors = append(meta.Authors, a.Name)
		case a.Email != "":
			meta.Authors = append(meta.Authors, a.Email)
		}
	}
	if raw.Tool != nil && raw.Tool.Py2Binmod != nil {
		meta.Tool = project.ToolConfig{
			Venv:       raw.Tool.Py2Binmod.Venv,
			ModuleRoot: raw.Tool.Py2Binmod.ModuleRoot,
			Module:     raw.Tool.Py2Binmod.Module,
		}
	}
	return meta, nil
}
