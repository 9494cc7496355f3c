package instrument

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var embedded embed.FS

// ValidationError captures a single definition problem.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates every problem found while loading a catalog.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// Catalog holds every instrument definition. It is read-only after Load and
// safe for concurrent use.
type Catalog struct {
	defs map[Code]*Definition
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the catalog built from the embedded definition files.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "definitions")
		if err != nil {
			defaultErr = err
			return
		}
		defaultCatalog, defaultErr = Load(sub)
	})
	return defaultCatalog, defaultErr
}

// Load reads every *.yaml file at the root of fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("scan definitions: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no instrument definitions found")
	}
	sort.Strings(files)

	cat := &Catalog{defs: make(map[Code]*Definition, len(files))}
	var vErrs ValidationErrors
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		def, errs := parseDefinition(data, path.Base(name))
		if len(errs) > 0 {
			vErrs = append(vErrs, errs...)
			continue
		}
		if _, dup := cat.defs[def.Code]; dup {
			vErrs = append(vErrs, ValidationError{File: name, Field: "code", Message: fmt.Sprintf("duplicate instrument %q", def.Code)})
			continue
		}
		cat.defs[def.Code] = def
	}
	if len(vErrs) > 0 {
		return nil, vErrs
	}
	return cat, nil
}

func parseDefinition(data []byte, source string) (*Definition, ValidationErrors) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, ValidationErrors{{File: source, Field: "yaml", Message: err.Error()}}
	}

	var errs ValidationErrors
	if _, err := ParseCode(string(def.Code)); err != nil {
		errs = append(errs, ValidationError{File: source, Field: "code", Message: err.Error()})
	}
	if len(def.Questions) == 0 {
		errs = append(errs, ValidationError{File: source, Field: "questions", Message: "at least one question is required"})
	}
	seen := make(map[string]bool, len(def.Questions))
	for i, q := range def.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q.ID == "" {
			errs = append(errs, ValidationError{File: source, Field: field, Message: "id is required"})
			continue
		}
		if seen[q.ID] {
			errs = append(errs, ValidationError{File: source, Field: field, Message: fmt.Sprintf("duplicate question id %q", q.ID)})
		}
		seen[q.ID] = true
		if !q.Type.valid() {
			errs = append(errs, ValidationError{File: source, Field: field, Message: fmt.Sprintf("invalid type %q", q.Type)})
		}
		if q.Type.IsChoice() && len(q.Options) == 0 {
			errs = append(errs, ValidationError{File: source, Field: field, Message: fmt.Sprintf("%s needs options", q.ID)})
		}
		codes := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			switch o.Code.(type) {
			case int, string:
			default:
				errs = append(errs, ValidationError{File: source, Field: field, Message: fmt.Sprintf("%s: option code %v must be an integer or a string", q.ID, o.Code)})
			}
			if codes[o.CodeString()] {
				errs = append(errs, ValidationError{File: source, Field: field, Message: fmt.Sprintf("%s: duplicate option code %q", q.ID, o.CodeString())})
			}
			codes[o.CodeString()] = true
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	def.buildIndex()
	return &def, nil
}

// Get returns the definition for code.
func (c *Catalog) Get(code Code) (*Definition, error) {
	def, ok := c.defs[code]
	if !ok {
		return nil, fmt.Errorf("no definition for instrument %q", code)
	}
	return def, nil
}

// List returns every definition sorted by code.
func (c *Catalog) List() []*Definition {
	out := make([]*Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
