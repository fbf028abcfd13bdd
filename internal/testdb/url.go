package testdb

import (
	"fmt"
	"net/url"
)

func replaceDatabase(connStr, name string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("%s must be a postgres:// URL", EnvURL)
	}
	u.Path = "/" + name
	return u.String(), nil
}
