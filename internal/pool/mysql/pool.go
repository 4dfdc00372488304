package mysql

import (
	"fmt"

	"github.com/koustreak/ConnRi/internal/pool"
)

const defaultPort = 3306

// buildDSN constructs the MySQL DSN string.
// Format: user:pass@tcp(host:port)/dbname?parseTime=true
func buildDSN(cfg *pool.Config) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database,
	)
	if cfg.SSL {
		dsn += "&tls=true"
	}
	return dsn
}
