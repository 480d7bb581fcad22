package codegen

import (
	"gopkg.in/yaml.v3"

	"github.com/binmodlabs/py2binmod/internal/config"
	"github.com/binmodlabs/py2binmod/internal/iface"
	"github.com/binmodlabs/py2binmod/internal/project"
)

// manifest is the machine-readable description of the generated unit,
// written as manifest.yaml. Hosts use it to discover the plugin's exports
// without loading the binary. It carries no timestamps or run identifiers
// so regeneration stays byte-stable.
type manifest struct {
	Name    string         `yaml:"name"`
	Version string         `yaml:"version"`
	Module  string         `yaml:"module"`
	Target  string         `yaml:"target"`
	Host    manifestHost   `yaml:"host"`
	Exports []manifestFunc `yaml:"exports"`
}

type manifestHost struct {
	Namespace string         `yaml:"namespace"`
	Functions []manifestFunc `yaml:"functions,omitempty"`
}

type manifestFunc struct {
	Name    string          `yaml:"name"`
	Doc     string          `yaml:"doc,omitempty"`
	Params  []manifestParam `yaml:"params"`
	Returns string          `yaml:"returns"`
}

type manifestParam struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func renderManifest(proj *project.Project) ([]byte, error) {
	m := manifest{
		Name:    proj.Metadata.Name,
		Version: proj.Metadata.Version,
		Module:  proj.ModuleName,
		Target:  config.TargetTriple,
		Host: manifestHost{
			Namespace: proj.Model.HostNamespace,
		},
	}

	for _, f := range proj.Model.HostFuncs {
		m.Host.Functions = append(m.Host.Functions, manifestFunc{
			Name:    f.Name,
			Params:  manifestParams(f.Params),
			Returns: f.Return.String(),
		})
	}

	for _, name := range proj.Model.Names() {
		sig, _ := proj.Model.Export(name)
		m.Exports = append(m.Exports, manifestFunc{
			Name:    sig.Name,
			Doc:     sig.Doc,
			Params:  manifestParams(sig.Params),
			Returns: sig.Return.String(),
		})
	}

	return yaml.Marshal(&m)
}

func manifestParams(params []iface.Param) []manifestParam {
	out := make([]manifestParam, len(params))
	for i, p := range params {
		out[i] = manifestParam{Name: p.Name, Type: p.Type.String()}
	}
	return out
}
