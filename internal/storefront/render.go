package storefront

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/nyanglife/catshop/internal/catalog"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the storefront page templates.
type Renderer struct {
	index    *template.Template
	category *template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{"price": FormatPrice}

	parse := func(page string) (*template.Template, error) {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		return t, nil
	}

	index, err := parse("index.html")
	if err != nil {
		return nil, err
	}
	category, err := parse("category.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{index: index, category: category}, nil
}

type indexPage struct {
	PageTitle  string
	Shell      ShellState
	Categories []catalog.Category
}

type categoryPage struct {
	PageTitle string
	Shell     ShellState
	View      State
	Loading   bool
	Error     bool
	Empty     bool
}

// RenderIndex writes the category list page.
func (r *Renderer) RenderIndex(w io.Writer, shell ShellState) error {
	return execute(w, r.index, indexPage{
		PageTitle:  "고양이 용품 카테고리",
		Shell:      shell,
		Categories: catalog.All(),
	})
}

// RenderCategory writes the page for one category view state.
func (r *Renderer) RenderCategory(w io.Writer, shell ShellState, state State) error {
	return execute(w, r.category, categoryPage{
		PageTitle: state.Title(),
		Shell:     shell,
		View:      state,
		Loading:   state.Status == StatusLoading || state.Status == StatusPending,
		Error:     state.Status == StatusError,
		Empty:     state.Status == StatusEmpty,
	})
}

// execute buffers the output so a template error never leaves a half-written
// page.
func execute(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}
