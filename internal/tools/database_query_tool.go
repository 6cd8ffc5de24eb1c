// In file: internal/tools/database_query_tool.go
package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
)

// confinedSQLiteDriver opens sqlite3 connections that cannot ATTACH other database files.
const confinedSQLiteDriver = "sqlite3_confined"

func init() {
	sql.Register(confinedSQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			conn.SetLimit(sqlite3.SQLITE_LIMIT_ATTACHED, 0)
			return nil
		},
	})
}

// Supported dbConnection drivers.
const (
	DriverSQLite = "sqlite3"
	DriverRedis  = "redis"
)

// DatabaseConfig restricts which drivers a model may reach and how much it reads back.
type DatabaseConfig struct {
	AllowedDrivers []string `yaml:"allowed_drivers"`
	MaxRows        int      `yaml:"max_rows"`
	// Root is the directory every sqlite3 dsn is resolved under.
	Root string `yaml:"root"`
}

// DatabaseQueryTool runs one query against the connection the model describes.
//
// dbConnection is an object: {"driver": "sqlite3", "dsn": "<path under root>"} for SQL, or
// {"driver": "redis", "addr": "host:port", "password": "...", "db": 0} where the query
// is a Redis command line such as "GET user:1".
type DatabaseQueryTool struct {
	allowed map[string]bool
	maxRows int
	root    string
}

var _ Action = (*DatabaseQueryTool)(nil)

// NewDatabaseQueryTool builds the tool. A root is required when sqlite3 is enabled.
func NewDatabaseQueryTool(cfg DatabaseConfig) (*DatabaseQueryTool, error) {
	allowed := make(map[string]bool, len(cfg.AllowedDrivers))
	for _, d := range cfg.AllowedDrivers {
		allowed[d] = true
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 50
	}
	t := &DatabaseQueryTool{allowed: allowed, maxRows: maxRows}
	if allowed[DriverSQLite] {
		if cfg.Root == "" {
			return nil, errors.New("database root is required when sqlite3 is enabled")
		}
		root, err := prepareRoot(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare database root: %w", err)
		}
		t.root = root
	}
	return t, nil
}

func (t *DatabaseQueryTool) Name() string { return DatabaseQueryToolName }

func (t *DatabaseQueryTool) Execute(ctx context.Context, args Args) (string, error) {
	conn := args.Object("dbConnection")
	driver, _ := conn["driver"].(string)
	if driver == "" {
		return "", errors.New("dbConnection.driver is required")
	}
	if !t.allowed[driver] {
		return "", fmt.Errorf("database driver %q is not enabled", driver)
	}

	query := strings.TrimSpace(args.String("query"))
	if query == "" {
		return "", errors.New("query is empty")
	}

	switch driver {
	case DriverSQLite:
		dsn, _ := conn["dsn"].(string)
		if dsn == "" {
			return "", errors.New("dbConnection.dsn is required for sqlite3")
		}
		return t.querySQL(ctx, dsn, query)
	case DriverRedis:
		return t.queryRedis(ctx, conn, query)
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// sqlitePath confines a dsn to a plain file under the root. URI forms and connection options
// are refused because they can attach other files or change how the file is opened.
func (t *DatabaseQueryTool) sqlitePath(dsn string) (string, error) {
	if strings.HasPrefix(strings.ToLower(dsn), "file:") || strings.Contains(dsn, "?") {
		return "", fmt.Errorf("dsn %q must be a plain file path", dsn)
	}
	return confine(t.root, dsn)
}

func (t *DatabaseQueryTool) querySQL(ctx context.Context, dsn, query string) (string, error) {
	path, err := t.sqlitePath(dsn)
	if err != nil {
		return "", err
	}
	db, err := sql.Open(confinedSQLiteDriver, path)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if !returnsRows(query) {
		res, err := db.ExecContext(ctx, query)
		if err != nil {
			return "", fmt.Errorf("database statement failed: %w", err)
		}
		affected, _ := res.RowsAffected()
		return fmt.Sprintf("Database statement executed; %d row(s) affected.", affected), nil
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("database query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	count, truncated := 0, false
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if count == t.maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if v == nil {
				v = "NULL"
			}
			cells[i] = fmt.Sprint(v)
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(cells, " | "))
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate rows: %w", err)
	}

	summary := fmt.Sprintf("Database query returned %d row(s):\n%s", count, sb.String())
	if truncated {
		summary += fmt.Sprintf("\n... [limited to %d rows]", t.maxRows)
	}
	return summary, nil
}

func (t *DatabaseQueryTool) queryRedis(ctx context.Context, conn map[string]any, query string) (string, error) {
	addr, _ := conn["addr"].(string)
	if addr == "" {
		return "", errors.New("dbConnection.addr is required for redis")
	}
	password, _ := conn["password"].(string)
	db := 0
	switch v := conn["db"].(type) {
	case int64:
		db = int(v)
	case float64:
		db = int(v)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	defer rdb.Close()

	fields := strings.Fields(query)
	cmdArgs := make([]any, len(fields))
	for i, f := range fields {
		cmdArgs[i] = f
	}

	val, err := rdb.Do(ctx, cmdArgs...).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Sprintf("Redis command '%s' returned (nil).", fields[0]), nil
	}
	if err != nil {
		return "", fmt.Errorf("redis command failed: %w", err)
	}
	return fmt.Sprintf("Redis command '%s' returned: %v", fields[0], val), nil
}

func returnsRows(query string) bool {
	head := strings.ToUpper(strings.Fields(query)[0])
	switch head {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}
