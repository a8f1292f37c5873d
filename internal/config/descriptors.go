// Package config loads the dashboard's project descriptors and server settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// Environment variables read by Load.
const (
	EnvProjectsConfig = "PROJECTS_CONFIG"
	EnvOwner          = "GITHUB_OWNER"
	EnvRepo           = "GITHUB_REPO"
	EnvProjectNumber  = "PROJECT_NUMBER"
)

// Limits applied to a configuration.
const (
	MaxProjects    = 10
	MaxTodoColumns = 5
)

// DefaultTodoColumns is used in legacy mode and when a JSON entry omits todoColumns.
var DefaultTodoColumns = []string{"TODO"}

// Error is a configuration failure. Field names the offending variable or
// JSON path when one applies.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadFromEnv loads descriptors from the process environment.
func LoadFromEnv() ([]domain.ProjectDescriptor, error) {
	return Load(os.LookupEnv)
}

// Load resolves the configured project descriptors. PROJECTS_CONFIG takes
// precedence; otherwise the legacy single-project variables are used.
// Every failure is a *Error.
func Load(lookup LookupFunc) ([]domain.ProjectDescriptor, error) {
	var (
		descriptors []domain.ProjectDescriptor
		err         error
	)

	if raw, ok := lookup(EnvProjectsConfig); ok && strings.TrimSpace(raw) != "" {
		descriptors, err = parseProjectsJSON(raw)
	} else {
		descriptors, err = parseLegacy(lookup)
	}
	if err != nil {
		return nil, err
	}

	if err := validateSet(descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

func parseLegacy(lookup LookupFunc) ([]domain.ProjectDescriptor, error) {
	owner := trimmed(lookup, EnvOwner)
	if owner == "" {
		return nil, errorf(EnvOwner, "is required when %s is not set", EnvProjectsConfig)
	}
	repo := trimmed(lookup, EnvRepo)
	if repo == "" {
		return nil, errorf(EnvRepo, "is required when %s is not set", EnvProjectsConfig)
	}
	numStr := trimmed(lookup, EnvProjectNumber)
	if numStr == "" {
		return nil, errorf(EnvProjectNumber, "is required when %s is not set", EnvProjectsConfig)
	}
	num, err := strconv.Atoi(numStr)
	if err != nil || num <= 0 {
		return nil, errorf(EnvProjectNumber, "must be a positive integer, got %q", numStr)
	}

	return []domain.ProjectDescriptor{{
		Name:          owner + "/" + repo,
		Owner:         owner,
		Repo:          repo,
		ProjectNumber: num,
		TodoColumns:   append([]string(nil), DefaultTodoColumns...),
	}}, nil
}

func trimmed(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func parseProjectsJSON(raw string) ([]domain.ProjectDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, errorf(EnvProjectsConfig, "invalid JSON: %v", err)
	}
	if dec.More() {
		return nil, errorf(EnvProjectsConfig, "invalid JSON: unexpected data after array")
	}

	entries, ok := parsed.([]any)
	if !ok {
		return nil, errorf(EnvProjectsConfig, "must be a JSON array")
	}
	if len(entries) == 0 {
		return nil, errorf(EnvProjectsConfig, "must contain at least one project")
	}
	if len(entries) > MaxProjects {
		return nil, errorf(EnvProjectsConfig, "too many projects: %d (max %d)", len(entries), MaxProjects)
	}

	descriptors := make([]domain.ProjectDescriptor, 0, len(entries))
	for i, entry := range entries {
		d, err := parseEntry(i, entry)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func parseEntry(i int, entry any) (domain.ProjectDescriptor, error) {
	prefix := fmt.Sprintf("%s[%d]", EnvProjectsConfig, i)

	obj, ok := entry.(map[string]any)
	if !ok {
		return domain.ProjectDescriptor{}, errorf(prefix, "must be an object")
	}

	var d domain.ProjectDescriptor
	var err error
	if d.Name, err = requiredString(obj, prefix, "name"); err != nil {
		return d, err
	}
	if d.Owner, err = requiredString(obj, prefix, "owner"); err != nil {
		return d, err
	}
	if d.Repo, err = requiredString(obj, prefix, "repo"); err != nil {
		return d, err
	}
	if d.ProjectNumber, err = projectNumber(obj, prefix); err != nil {
		return d, err
	}
	if d.TodoColumns, err = todoColumns(obj, prefix); err != nil {
		return d, err
	}
	return d, nil
}

func requiredString(obj map[string]any, prefix, key string) (string, error) {
	field := prefix + "." + key
	v, ok := obj[key]
	if !ok {
		return "", errorf(field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", errorf(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errorf(field, "must not be empty")
	}
	return s, nil
}

func projectNumber(obj map[string]any, prefix string) (int, error) {
	field := prefix + ".projectNumber"
	v, ok := obj["projectNumber"]
	if !ok {
		return 0, errorf(field, "is required")
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, errorf(field, "must be a number")
	}
	n, err := strconv.Atoi(num.String())
	if err != nil || n <= 0 {
		return 0, errorf(field, "must be a positive integer, got %s", num)
	}
	return n, nil
}

func todoColumns(obj map[string]any, prefix string) ([]string, error) {
	field := prefix + ".todoColumns"
	v, ok := obj["todoColumns"]
	if !ok {
		return append([]string(nil), DefaultTodoColumns...), nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errorf(field, "must be an array of strings")
	}
	if len(list) == 0 {
		return nil, errorf(field, "must not be empty")
	}
	if len(list) > MaxTodoColumns {
		return nil, errorf(field, "too many columns: %d (max %d)", len(list), MaxTodoColumns)
	}

	cols := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for j, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, errorf(fmt.Sprintf("%s[%d]", field, j), "must be a string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, errorf(fmt.Sprintf("%s[%d]", field, j), "must not be empty")
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		cols = append(cols, s)
	}
	return cols, nil
}

// validateSet checks constraints spanning all descriptors.
func validateSet(descriptors []domain.ProjectDescriptor) error {
	if len(descriptors) > MaxProjects {
		return errorf(EnvProjectsConfig, "too many projects: %d (max %d)", len(descriptors), MaxProjects)
	}

	names := make(map[string]int, len(descriptors))
	repos := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		name := strings.ToLower(d.Name)
		if j, dup := names[name]; dup {
			return errorf(fmt.Sprintf("%s[%d].name", EnvProjectsConfig, i),
				"duplicate project name %q (also used by entry %d)", d.Name, j)
		}
		names[name] = i

		repo := strings.ToLower(d.Owner + "/" + d.Repo)
		if j, dup := repos[repo]; dup {
			return errorf(fmt.Sprintf("%s[%d].repo", EnvProjectsConfig, i),
				"duplicate repository %s/%s (also used by entry %d)", d.Owner, d.Repo, j)
		}
		repos[repo] = i

		if len(d.TodoColumns) == 0 {
			return errorf(fmt.Sprintf("%s[%d].todoColumns", EnvProjectsConfig, i), "must not be empty")
		}
	}
	return nil
}
