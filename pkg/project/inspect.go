package project

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Dima2021/anaconda-project/pkg/projectfile"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
)

// validate is shared across inspections; validator.Validate is
// goroutine-safe and caches struct metadata.
var validate = validator.New()

// downloadSpec is the validated shape of one downloads entry.
type downloadSpec struct {
	URL      string `validate:"required,url"`
	Filename string `validate:"omitempty"`
}

// inspect re-derives problems and the requirement projection from the
// current in-memory document content.
func (p *Project) inspect() {
	p.problems = nil
	p.reqs = nil
	p.environments = make(map[string]*Environment)
	p.envOrder = nil
	p.commands = make(map[string]*Command)

	if corrupted := p.projectFile.Corrupted(); corrupted != "" {
		p.addProblem("%s has a syntax error: %s", projectfile.Filename, corrupted)
		return
	}

	p.inspectProperties()
	p.inspectVariables()
	p.inspectDownloads()
	p.inspectServices()
	p.inspectEnvironments()
	p.inspectCommands()

	// The conda environment requirement always exists, even for an
	// empty project; preparing it realizes the selected environment.
	p.reqs = append(p.reqs, &requirements.CondaEnvRequirement{})
}

func (p *Project) addProblem(format string, args ...interface{}) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

// projectfileDoc is shorthand for the underlying document.
func (p *Project) projectfileDoc() *projectfile.Document {
	return p.projectFile.Document
}

func (p *Project) inspectProperties() {
	doc := p.projectFile.Document
	for _, field := range []string{"name", "icon"} {
		if doc.Has(field) && doc.GetString(field) == "" {
			p.addProblem("%s: field should have a string value", field)
		}
	}
}

func (p *Project) inspectVariables() {
	doc := p.projectFile.Document
	if !doc.Has("variables") {
		return
	}
	if !doc.IsMapping("variables") {
		p.addProblem("variables: section must be a mapping of variable names to default values")
		return
	}
	for _, name := range doc.Keys("variables") {
		value, _ := doc.Get("variables", name)
		req := &requirements.EnvVarRequirement{Variable: name}
		switch v := value.(type) {
		case nil:
			// declared with no default
		case string:
			req.Default = v
		case int, float64, bool:
			req.Default = fmt.Sprintf("%v", v)
		case map[string]interface{}:
			if def, ok := v["default"].(string); ok {
				req.Default = def
			}
		default:
			p.addProblem("variables: '%s' has a value that is neither a default nor empty", name)
			continue
		}
		p.reqs = append(p.reqs, req)
	}
}

func (p *Project) inspectDownloads() {
	doc := p.projectFile.Document
	if !doc.Has("downloads") {
		return
	}
	if !doc.IsMapping("downloads") {
		p.addProblem("downloads: section must be a mapping of variable names to URLs")
		return
	}
	for _, name := range doc.Keys("downloads") {
		spec := downloadSpec{}
		value, _ := doc.Get("downloads", name)
		switch v := value.(type) {
		case string:
			spec.URL = v
		case map[string]interface{}:
			if u, ok := v["url"].(string); ok {
				spec.URL = u
			}
			if f, ok := v["filename"].(string); ok {
				spec.Filename = f
			}
		default:
			p.addProblem("downloads: '%s' must be a URL string or a mapping with a 'url' field", name)
			continue
		}
		if err := validate.Struct(spec); err != nil {
			p.addProblem("downloads: '%s' has an invalid URL '%s'", name, spec.URL)
			continue
		}
		if spec.Filename == "" {
			spec.Filename = downloadFilename(name, spec.URL)
		}
		p.reqs = append(p.reqs, &requirements.DownloadRequirement{
			Variable: name,
			URL:      spec.URL,
			Filename: spec.Filename,
		})
	}
}

// downloadFilename derives a local filename from the URL path,
// falling back to the lowercased variable name.
func downloadFilename(envVar, rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return strings.ToLower(envVar)
}

func (p *Project) inspectServices() {
	doc := p.projectFile.Document
	if !doc.Has("services") {
		return
	}
	if !doc.IsMapping("services") {
		p.addProblem("services: section must be a mapping of variable names to service types")
		return
	}
	for _, name := range doc.Keys("services") {
		serviceType := doc.GetString("services", name)
		if serviceType == "" {
			p.addProblem("services: '%s' must have a service type string", name)
			continue
		}
		if _, known := p.registry.FindServiceType(serviceType); !known {
			p.addProblem("services: '%s' has an unknown service type '%s'", name, serviceType)
			continue
		}
		p.reqs = append(p.reqs, &requirements.ServiceRequirement{
			Variable:    name,
			ServiceType: serviceType,
		})
	}
}

func (p *Project) inspectEnvironments() {
	doc := p.projectfileDoc()

	globalDeps, globalOK := p.stringListSection(nil, "dependencies")
	globalChannels, channelsOK := p.stringListSection(nil, "channels")
	if !globalOK {
		p.addProblem("dependencies: section must be a list of package names")
	}
	if !channelsOK {
		p.addProblem("channels: section must be a list of channel names")
	}

	addEnv := func(name string, deps, channels []string) {
		env := &Environment{
			Name:         name,
			Dependencies: append(append([]string{}, globalDeps...), deps...),
			Channels:     append(append([]string{}, globalChannels...), channels...),
		}
		p.environments[name] = env
		p.envOrder = append(p.envOrder, name)
	}

	addEnv(DefaultEnvironmentName, nil, nil)

	if !doc.Has("environments") {
		return
	}
	if !doc.IsMapping("environments") {
		p.addProblem("environments: section must be a mapping of environment names")
		return
	}
	for _, name := range doc.Keys("environments") {
		if value, _ := doc.Get("environments", name); value != nil {
			if _, ok := value.(map[string]interface{}); !ok {
				p.addProblem("environments: '%s' must be a mapping with dependencies and channels", name)
				continue
			}
		}
		deps, depsOK := p.stringListSection([]string{"environments", name}, "dependencies")
		channels, chOK := p.stringListSection([]string{"environments", name}, "channels")
		if !depsOK {
			p.addProblem("environments: '%s' dependencies must be a list of package names", name)
		}
		if !chOK {
			p.addProblem("environments: '%s' channels must be a list of channel names", name)
		}
		if name == DefaultEnvironmentName {
			// explicit default merges over the implicit one
			env := p.environments[name]
			env.Dependencies = append(env.Dependencies, deps...)
			env.Channels = append(env.Channels, channels...)
			continue
		}
		addEnv(name, deps, channels)
	}
}

// stringListSection reads the sequence at prefix+key, reporting ok
// false when the key exists but is not a sequence of scalars.
func (p *Project) stringListSection(prefix []string, key string) ([]string, bool) {
	doc := p.projectfileDoc()
	fullPath := append(append([]string{}, prefix...), key)
	if !doc.Has(fullPath...) {
		return nil, true
	}
	value, _ := doc.Get(fullPath...)
	if value == nil {
		return nil, true
	}
	if _, isList := value.([]interface{}); !isList {
		return nil, false
	}
	return doc.StringList(fullPath...), true
}

func (p *Project) inspectCommands() {
	doc := p.projectfileDoc()
	if !doc.Has("commands") {
		return
	}
	if !doc.IsMapping("commands") {
		p.addProblem("commands: section must be a mapping of command names")
		return
	}
	for _, name := range doc.Keys("commands") {
		if !doc.IsMapping("commands", name) {
			p.addProblem("command '%s' must be a mapping of command types", name)
			continue
		}
		cmd := &Command{Name: name, Attributes: make(map[string]string)}
		for _, attr := range doc.Keys("commands", name) {
			if attr == "auto_generated" {
				value, _ := doc.Get("commands", name, attr)
				if generated, ok := value.(bool); ok {
					cmd.AutoGenerated = generated
				} else {
					p.addProblem("command '%s' auto_generated must be true or false", name)
				}
				continue
			}
			if !IsCommandType(attr) {
				p.addProblem("command '%s' has an unknown attribute '%s'", name, attr)
				continue
			}
			line := doc.GetString("commands", name, attr)
			if line == "" {
				p.addProblem("command '%s' attribute '%s' should have a string value", name, attr)
				continue
			}
			cmd.Attributes[attr] = line
		}

		if len(cmd.Attributes) == 0 {
			p.addProblem("command '%s' does not have a command line in it", name)
		}
		// shell and windows are platform variants of one command;
		// notebook and bokeh_app must each stand alone.
		groups := 0
		if cmd.Attributes["shell"] != "" || cmd.Attributes["windows"] != "" {
			groups++
		}
		if cmd.Attributes["notebook"] != "" {
			groups++
		}
		if cmd.Attributes["bokeh_app"] != "" {
			groups++
		}
		if groups > 1 {
			p.addProblem("command '%s' has conflicting command types in it", name)
		}
		p.commands[name] = cmd
	}
}
