package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DBConfig accepts either a DSN or discrete connection parts; the parts are
// only read when the DSN is empty.
type DBConfig struct {
	DSN    string `envconfig:"VENDEO_DB_DSN"`
	Driver string `envconfig:"VENDEO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VENDEO_DB_HOST"`
	Port     int    `envconfig:"VENDEO_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDEO_DB_USER"`
	Password string `envconfig:"VENDEO_DB_PASSWORD"`
	Name     string `envconfig:"VENDEO_DB_NAME"`
	SSLMode  string `envconfig:"VENDEO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDEO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDEO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDEO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDEO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged as a warning.
	SlowQuery time.Duration `envconfig:"VENDEO_DB_SLOW_QUERY" default:"500ms"`
}

// resolveDSN fills DSN and Driver. SQLite mode wins over everything else.
func (db *DBConfig) resolveDSN(useSQLite bool) error {
	switch {
	case useSQLite:
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = DefaultSQLiteDSN
		}
		return nil
	case db.DSN != "":
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is not set and the connection parts are incomplete: missing %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
