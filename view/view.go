// Package view renders the embedded html/template pages with a shared layout
// and func map.
package view

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/go-backoffice/auth"
)

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

var (
	devMode  bool
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}
)

// SetDev disables the template cache, so edits show up without a restart.
func SetDev(dev bool) { devMode = dev }

// ResetForTests clears the template cache.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"amount": func(v any) string {
			f, _ := toFloat64(v)
			return strconv.FormatFloat(f, 'f', 2, 64)
		},
		"mul": func(a, b any) float64 {
			fa, oka := toFloat64(a)
			fb, okb := toFloat64(b)
			if !oka || !okb {
				return 0
			}
			return fa * fb
		},
		"upper": strings.ToUpper,
		"year":  func() int { return time.Now().Year() },
		// dict builds a map for sub-templates: {{ template "x" (dict "K" v) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func parse(name string) (*template.Template, error) {
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			return t, nil
		}
	}

	content, err := fs.ReadFile(templateFS, "templates/"+name)
	if err != nil {
		return nil, err
	}
	var t *template.Template
	// full documents (print views) skip the layout
	if bytes.Contains(bytes.ToLower(content), []byte("<!doctype")) {
		t, err = template.New(name).Funcs(Funcs()).ParseFS(templateFS, "templates/"+name)
	} else {
		t, err = template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS,
			"templates/layout.html", "templates/partials/*.html", "templates/"+name)
	}
	if err != nil {
		return nil, err
	}

	if !devMode {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return t, nil
}

// Render executes the named template into w. Output is buffered so a failing
// template never leaves a half-written page.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	if _, exists := data["IsLoggedIn"]; !exists {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	t, err := parse(name)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.New("template not found: " + name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}
