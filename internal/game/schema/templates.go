package schema

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// TemplateNames lists the built-in templates in alphabetical order.
func TemplateNames() []string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Template returns a fresh, normalized copy of a built-in template.
func Template(name string) (*GameRules, error) {
	data, err := templateFS.ReadFile(path.Join("templates", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	rules, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return rules, nil
}
