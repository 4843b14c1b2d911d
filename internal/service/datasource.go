package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"probe-go/internal/probe"
	"probe-go/internal/state"
)

var (
	ErrNotConnected  = errors.New("datasource: not connected")
	ErrUnknownTable  = errors.New("datasource: unknown table")
	ErrUnknownColumn = errors.New("datasource: unknown column")
	ErrUnsupported   = errors.New("datasource: unsupported type")
	ErrNullMeasure   = errors.New("datasource: null size or effort")
)

// DataSourceConfig holds connection details. Type is "postgres"; SSLMode
// defaults to "disable".
type DataSourceConfig struct {
	Type     string `json:"type" yaml:"type"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// ConnString renders the config as a libpq key/value connection string.
func (c DataSourceConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	pairs := []string{
		"host=" + quoteConnValue(c.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteConnValue(c.User),
		"password=" + quoteConnValue(c.Password),
		"dbname=" + quoteConnValue(c.DBName),
		"sslmode=" + quoteConnValue(sslMode),
	}
	return strings.Join(pairs, " ")
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// HistoryQuery selects historical projects from a table. IDColumn is
// optional; when set it also orders the rows.
type HistoryQuery struct {
	Table        string `json:"table"`
	SizeColumn   string `json:"size_column"`
	EffortColumn string `json:"effort_column"`
	IDColumn     string `json:"id_column,omitempty"`
}

// DataSource defines the interface for historical project stores
type DataSource interface {
	Connect(ctx context.Context, config DataSourceConfig) error
	Close() error
	ListTables(ctx context.Context) ([]string, error)
	LoadHistory(ctx context.Context, q HistoryQuery) (*state.History, error)
}

// NewDataSource returns an unconnected DataSource for config.Type.
func NewDataSource(config DataSourceConfig) (DataSource, error) {
	switch config.Type {
	case "postgres", "postgresql", "":
		return &PostgresDataSource{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, config.Type)
	}
}

// PostgresDataSource implements DataSource for PostgreSQL
type PostgresDataSource struct {
	db *sql.DB
}

func (p *PostgresDataSource) Connect(ctx context.Context, config DataSourceConfig) error {
	db, err := sql.Open("postgres", config.ConnString())
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	p.db = db
	return nil
}

func (p *PostgresDataSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresDataSource) ListTables(ctx context.Context) ([]string, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	return p.queryStrings(ctx, query)
}

func (p *PostgresDataSource) listColumns(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position;
	`
	return p.queryStrings(ctx, query, table)
}

// LoadHistory reads size/effort pairs from q.Table. Table and column names
// are checked against the catalog and quoted before use.
func (p *PostgresDataSource) LoadHistory(ctx context.Context, q HistoryQuery) (*state.History, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}
	tables, err := p.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(tables, q.Table) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, q.Table)
	}
	columns, err := p.listColumns(ctx, q.Table)
	if err != nil {
		return nil, err
	}
	for _, c := range []string{q.SizeColumn, q.EffortColumn, q.IDColumn} {
		if c != "" && !contains(columns, c) {
			return nil, fmt.Errorf("%w: %q in table %q", ErrUnknownColumn, c, q.Table)
		}
	}
	if q.SizeColumn == "" || q.EffortColumn == "" {
		return nil, fmt.Errorf("%w: size and effort columns are required", ErrUnknownColumn)
	}

	rows, err := p.db.QueryContext(ctx, buildHistoryQuery(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes, efforts []float64
	var ids []string
	for rows.Next() {
		var size, effort sql.NullFloat64
		var id sql.NullString
		dest := []interface{}{&size, &effort}
		if q.IDColumn != "" {
			dest = append(dest, &id)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if !size.Valid || !effort.Valid {
			return nil, fmt.Errorf("%w: row %d of %q", ErrNullMeasure, len(sizes)+1, q.Table)
		}
		sizes = append(sizes, size.Float64)
		efforts = append(efforts, effort.Float64)
		if q.IDColumn != "" {
			ids = append(ids, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ds, err := probe.NewDataset(sizes, efforts)
	if err != nil {
		return nil, err
	}
	return &state.History{
		Source:       "postgres",
		Name:         q.Table,
		SizeColumn:   q.SizeColumn,
		EffortColumn: q.EffortColumn,
		ProjectIDs:   ids,
		Dataset:      ds,
		LoadedAt:     time.Now(),
	}, nil
}

func buildHistoryQuery(q HistoryQuery) string {
	cols := pq.QuoteIdentifier(q.SizeColumn) + ", " + pq.QuoteIdentifier(q.EffortColumn)
	if q.IDColumn == "" {
		return fmt.Sprintf("SELECT %s FROM %s", cols, pq.QuoteIdentifier(q.Table))
	}
	id := pq.QuoteIdentifier(q.IDColumn)
	return fmt.Sprintf("SELECT %s, %s::text FROM %s ORDER BY %s", cols, id, pq.QuoteIdentifier(q.Table), id)
}

func (p *PostgresDataSource) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
