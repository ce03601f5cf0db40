package reporttemplate

import (
	"bytes"
	"embed"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// DefaultTemplateName is the embedded page template.
const DefaultTemplateName = "page.html"

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateExecutor executes a named template with data.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// Pongo2Executor runs templates from a pongo2 set. Parsed templates are cached
// by the set.
type Pongo2Executor struct {
	Set *pongo2.TemplateSet
}

var _ TemplateExecutor = (*Pongo2Executor)(nil)

// NewPongo2Executor wraps a pongo2 set built from the given loaders.
func NewPongo2Executor(name string, loaders ...pongo2.TemplateLoader) *Pongo2Executor {
	return &Pongo2Executor{Set: pongo2.NewSet(name, loaders...)}
}

// NewDirExecutor loads templates from a directory on disk.
func NewDirExecutor(dir string) (*Pongo2Executor, error) {
	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, err
	}
	return NewPongo2Executor("report-dir", loader), nil
}

// ExecuteTemplate renders a template into w. Map data becomes the template
// context; anything else is exposed as "data".
func (e *Pongo2Executor) ExecuteTemplate(w io.Writer, name string, data any) error {
	if e == nil || e.Set == nil {
		return errors.New("pongo2 executor requires a template set")
	}
	tpl, err := e.Set.FromCache(name)
	if err != nil {
		return err
	}
	return tpl.ExecuteWriter(toContext(data), w)
}

func toContext(data any) pongo2.Context {
	switch v := data.(type) {
	case pongo2.Context:
		return v
	case map[string]any:
		return pongo2.Context(v)
	case nil:
		return pongo2.Context{}
	default:
		return pongo2.Context{"data": v}
	}
}

var defaultExecutor = NewPongo2Executor("report", embedLoader{fsys: embeddedTemplates, root: "templates"})

// embedLoader serves templates from an embedded filesystem.
type embedLoader struct {
	fsys fs.FS
	root string
}

func (l embedLoader) Abs(base, name string) string {
	name = strings.TrimPrefix(name, "/")
	if base == "" || strings.HasPrefix(name, l.root+"/") {
		return path.Join(l.root, strings.TrimPrefix(name, l.root+"/"))
	}
	return path.Join(path.Dir(base), name)
}

func (l embedLoader) Get(p string) (io.Reader, error) {
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
