package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	SchemaDir = "schemas"
	schemaExt = ".json"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// SchemaKey maps a library name such as "shop" to "schemas/shop.json".
func SchemaKey(name string) (string, error) {
	if err := ValidateSchemaName(name); err != nil {
		return "", err
	}
	return path.Join(SchemaDir, name+schemaExt), nil
}

// SchemaNameFromKey is the inverse of SchemaKey. ok is false for keys that
// SchemaKey could not have produced.
func SchemaNameFromKey(key string) (name string, ok bool) {
	dir, file := path.Split(key)
	if strings.TrimSuffix(dir, "/") != SchemaDir || !strings.HasSuffix(file, schemaExt) {
		return "", false
	}
	name = strings.TrimSuffix(file, schemaExt)
	if ValidateSchemaName(name) != nil {
		return "", false
	}
	return name, true
}

func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid schema name %q: use letters, digits, '.', '_' or '-' (max 128)", name)
	}
	return nil
}
