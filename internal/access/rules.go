package access

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultRules is the school route table used when no file is configured.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{Prefix: "/admin", Roles: []Role{RoleAdmin}},
		{Prefix: "/teacher", Roles: []Role{RoleTeacher, RoleAdmin}},
		{Prefix: "/parent", Roles: []Role{RoleParent, RoleAdmin}},
		{Prefix: "/dashboard"},
		{Prefix: "/api/admin", Roles: []Role{RoleAdmin}},
		{Prefix: "/api/teacher", Roles: []Role{RoleTeacher, RoleAdmin}},
		{Prefix: "/api/parent", Roles: []Role{RoleParent, RoleAdmin}},
		{Prefix: "/api"},
	}
}

type routeFile struct {
	Public []string    `yaml:"public"`
	Routes []RouteRule `yaml:"routes"`
}

// LoadClassifier builds the classifier from a YAML route file, or from the
// defaults when file is empty. Public prefixes from the file are added to
// DefaultPublicPrefixes, never replacing them.
func LoadClassifier(file string) (*Classifier, error) {
	if file == "" {
		return NewClassifier(DefaultRules(), DefaultPublicPrefixes)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("access: read route file: %w", err)
	}
	return ParseRouteFile(data)
}

// ParseRouteFile decodes a YAML route table.
func ParseRouteFile(data []byte) (*Classifier, error) {
	var rf routeFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("access: parse route file: %w", err)
	}
	if len(rf.Routes) == 0 {
		return nil, fmt.Errorf("access: route file declares no routes")
	}
	public := append(append([]string{}, DefaultPublicPrefixes...), rf.Public...)
	return NewClassifier(rf.Routes, public)
}
