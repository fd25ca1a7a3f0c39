package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ResolveDatabase resolves the PostgreSQL connection URL and schema.
//
// URL priority:
//  1. the explicit argument
//  2. DATABASE_URL
//  3. POSTGRES_URL
//  4. DB_URL
//  5. legacy triple DBURL + DBUSER + DBPASSWORD, assembled into a URL
//     with percent-encoded credentials (DBURL may be host:port/db or a
//     full URL)
//
// Schema priority: explicit argument, then DB_SCHEMA, then
// POSTGRES_SCHEMA; blank after trimming means the default schema.
//
// The resolved URL must start with postgres:// or postgresql://.
func (c *Config) ResolveDatabase(explicitURL, explicitSchema string) (dbURL, schema string, err error) {
	dbURL, err = resolveDatabaseURL(explicitURL, c.DatabaseURL)
	if err != nil {
		return "", "", err
	}

	schema = strings.TrimSpace(explicitSchema)
	if schema == "" {
		schema = strings.TrimSpace(os.Getenv("DB_SCHEMA"))
	}
	if schema == "" {
		schema = strings.TrimSpace(os.Getenv("POSTGRES_SCHEMA"))
	}
	if schema == "" {
		schema = strings.TrimSpace(c.DatabaseSchema)
	}
	return dbURL, schema, nil
}

func resolveDatabaseURL(explicit, fromFile string) (string, error) {
	resolved := strings.TrimSpace(explicit)

	if resolved == "" {
		for _, envVar := range []string{"DATABASE_URL", "POSTGRES_URL", "DB_URL"} {
			if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
				resolved = v
				break
			}
		}
	}

	if resolved == "" {
		resolved = assembleLegacyURL()
	}

	if resolved == "" {
		resolved = strings.TrimSpace(fromFile)
	}

	if resolved == "" {
		return "", fmt.Errorf("%w: set DATABASE_URL, POSTGRES_URL, DB_URL, or DBURL/DBUSER/DBPASSWORD", ErrDatabaseURLNotFound)
	}

	if !strings.HasPrefix(resolved, "postgres://") && !strings.HasPrefix(resolved, "postgresql://") {
		return "", fmt.Errorf("%w: expected postgres:// or postgresql:// scheme", ErrInvalidDatabaseURL)
	}
	return resolved, nil
}

// assembleLegacyURL builds a connection URL from the legacy
// DBURL/DBUSER/DBPASSWORD triple. Credentials are percent-encoded before
// assembly so passwords with reserved characters survive. Returns ""
// when the triple is incomplete.
func assembleLegacyURL() string {
	host := strings.TrimSpace(os.Getenv("DBURL"))
	user := os.Getenv("DBUSER")
	password := os.Getenv("DBPASSWORD")
	if host == "" || user == "" || password == "" {
		return ""
	}

	// DBURL may already be a full URL carrying its own credentials.
	if strings.HasPrefix(host, "postgresql://") || strings.HasPrefix(host, "postgres://") {
		return host
	}

	return fmt.Sprintf("postgresql://%s:%s@%s",
		url.QueryEscape(user), url.QueryEscape(password), host)
}
