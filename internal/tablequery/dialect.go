package tablequery

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

func init() {
	// modernc.org/sqlite registers as "sqlite", which sqlx does not know about
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Dialect struct {
	name      string
	quoteChar string
	bindType  int
}

var (
	Postgres = Dialect{name: "postgres", quoteChar: `"`, bindType: sqlx.DOLLAR}
	MySQL    = Dialect{name: "mysql", quoteChar: "`", bindType: sqlx.QUESTION}
	SQLite   = Dialect{name: "sqlite", quoteChar: `"`, bindType: sqlx.QUESTION}
)

func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "postgres", "pgx", "cloudsqlpostgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql driver: %s", driverName)
}

func (d Dialect) Name() string {
	return d.name
}

// Quote quotes a possibly table-qualified identifier. Dots are treated as
// qualifiers unless the identifier is passed through QuoteRaw.
func (d Dialect) Quote(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = d.QuoteRaw(part)
	}
	return strings.Join(parts, ".")
}

// QuoteRaw quotes identifier as a single name, even if it contains dots
func (d Dialect) QuoteRaw(identifier string) string {
	escaped := strings.ReplaceAll(identifier, d.quoteChar, d.quoteChar+d.quoteChar)
	return d.quoteChar + escaped + d.quoteChar
}

func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}
