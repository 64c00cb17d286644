package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/osteele/liquid"
)

// Vars are the bindings a template is rendered with.
type Vars map[string]interface{}

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

type parsed struct {
	subject *liquid.Template
	body    *liquid.Template
}

// Renderer renders the configured templates. All templates are parsed when
// the renderer is created, so a syntax error is reported at startup rather
// than on the first lead that needs it.
type Renderer struct {
	engine    *liquid.Engine
	templates map[string]parsed
}

// NewRenderer returns a renderer for the built-in templates with overrides
// applied. An override replaces only the fields it sets.
func NewRenderer(overrides map[string]Template) (*Renderer, error) {
	r := &Renderer{
		engine:    liquid.NewEngine(),
		templates: make(map[string]parsed),
	}
	registerFilters(r.engine)

	sources := Builtin()
	for name, o := range overrides {
		base, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("unknown template %q (known: %s)", name, strings.Join(Names(), ", "))
		}
		if o.Subject != "" {
			base.Subject = o.Subject
		}
		if o.Body != "" {
			base.Body = o.Body
		}
		sources[name] = base
	}

	for name, src := range sources {
		subject, err := r.engine.ParseString(src.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s: invalid subject: %w", name, err)
		}
		body, err := r.engine.ParseString(src.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s: invalid body: %w", name, err)
		}
		r.templates[name] = parsed{subject: subject, body: body}
	}
	return r, nil
}

// Names lists the built-in template names in order.
func Names() []string {
	names := make([]string, 0, 3)
	for name := range Builtin() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders the named template.
func (r *Renderer) Render(name string, vars Vars) (Message, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", name)
	}
	bindings := map[string]interface{}(vars)

	subject, err := tpl.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("template %s: failed to render subject: %w", name, err)
	}
	body, err := tpl.body.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("template %s: failed to render body: %w", name, err)
	}

	subject = strings.Join(strings.Fields(subject), " ")
	if subject == "" {
		return Message{}, fmt.Errorf("template %s: rendered subject is empty", name)
	}
	return Message{Subject: subject, Body: body}, nil
}

// registerFilters adds the filters lead templates rely on.
func registerFilters(engine *liquid.Engine) {
	// {{ name | default: "there" }} treats blank strings as missing.
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if strings.TrimSpace(s) == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | first_name }}
	engine.RegisterFilter("first_name", func(s string) string {
		return FirstName(s)
	})
}

// FirstName returns the first word of a display name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
