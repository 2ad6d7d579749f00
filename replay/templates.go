package replay

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"xpo/config"
	"xpo/scenario"
)

// Values holds variables available for output name template expansion.
type Values struct {
	Name          string
	SourceFile    string
	SourceDir     string
	Session       string
	Format        string
	Passed        bool
	Steps         int
	Notifications int
	Failures      int
}

func newValues(res *scenario.Result, src string, format config.OutputFormat) Values {
	dir := filepath.ToSlash(filepath.Dir(src))
	if dir == "." {
		dir = ""
	}
	return Values{
		Name:          res.Name,
		SourceFile:    strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		SourceDir:     dir,
		Session:       res.Session,
		Format:        format.String(),
		Passed:        res.Passed(),
		Steps:         res.Steps,
		Notifications: len(res.Notifications),
		Failures:      len(res.Failures),
	}
}

// parseNameTemplate is called once per batch, broken template fails replay
// before anything is played.
func parseNameTemplate(field string) (*template.Template, error) {
	if len(field) == 0 {
		return nil, nil
	}
	tmpl, err := template.New("output_name_template").Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return nil, fmt.Errorf("unable to parse output name template: %w", err)
	}
	return tmpl, nil
}

func expandNameTemplate(tmpl *template.Template, v Values) (string, error) {
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
