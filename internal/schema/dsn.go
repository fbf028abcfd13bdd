package schema

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// parseDSN returns the database name of dsn and a DSN pointing at the
// "postgres" maintenance database on the same server.
func parseDSN(dsn string) (dbName, adminDSN string, err error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("invalid database URL: %w", err)
		}
		dbName = strings.TrimPrefix(u.Path, "/")
		if dbName == "" {
			return "", "", fmt.Errorf("no database name found in URL")
		}
		u.Path = "/postgres"
		return dbName, u.String(), nil
	}

	params := keyValues(dsn)
	dbName = params["dbname"]
	if dbName == "" {
		return "", "", fmt.Errorf("no database name found in DSN")
	}
	params["dbname"] = "postgres"
	return dbName, joinKeyValues(params), nil
}

// withDatabase returns dsn with its database replaced by name
func withDatabase(dsn, name string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid database URL: %w", err)
		}
		u.Path = "/" + name
		return u.String(), nil
	}

	params := keyValues(dsn)
	params["dbname"] = name
	return joinKeyValues(params), nil
}

func keyValues(dsn string) map[string]string {
	params := make(map[string]string)
	for _, kv := range strings.Fields(dsn) {
		if k, v, ok := strings.Cut(kv, "="); ok {
			params[k] = v
		}
	}
	return params
}

func joinKeyValues(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, " ")
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
