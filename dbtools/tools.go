package dbtools

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/SystemSolution21/adk-mcp/registry"
)

// ListTablesArgs are the arguments of list_db_tables.
type ListTablesArgs struct {
	DummyParam string `json:"dummy_param" jsonschema:"description=Unused. Any non-empty string."`
}

// TableArgs names a single table.
type TableArgs struct {
	TableName string `json:"table_name" jsonschema:"description=Name of the table"`
}

// QueryArgs are the arguments of query_db_table.
type QueryArgs struct {
	TableName string `json:"table_name" jsonschema:"description=Name of the table to query"`
	Columns   string `json:"columns,omitempty" jsonschema:"description=Comma-separated columns to return; empty or * for all"`
	Condition string `json:"condition,omitempty" jsonschema:"description=Optional SQL WHERE condition without the WHERE keyword"`
}

// InsertArgs are the arguments of insert_data.
type InsertArgs struct {
	TableName string         `json:"table_name" jsonschema:"description=Name of the table to insert into"`
	Data      map[string]any `json:"data" jsonschema:"description=Column names mapped to values for the new row"`
}

// DeleteArgs are the arguments of delete_data.
type DeleteArgs struct {
	TableName string `json:"table_name" jsonschema:"description=Name of the table to delete from"`
	Condition string `json:"condition" jsonschema:"description=SQL WHERE condition selecting the rows to delete; must not be empty"`
}

// ListTablesResult reports the tables of the database.
type ListTablesResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Tables  []string `json:"tables"`
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaResult describes a table.
type SchemaResult struct {
	TableName string   `json:"table_name"`
	Columns   []Column `json:"columns"`
}

// InsertResult reports the outcome of insert_data.
type InsertResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RowID   *int64 `json:"row_id,omitempty"`
}

// DeleteResult reports the outcome of delete_data.
type DeleteResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RowsDeleted *int64 `json:"rows_deleted,omitempty"`
}

// Tools operates on one database.
type Tools struct {
	db *sql.DB
}

// New returns the database tools bound to db.
func New(db *sql.DB) *Tools { return &Tools{db: db} }

// Register adds the five database tools to reg.
func Register(reg *registry.Registry, db *sql.DB) error {
	for _, t := range New(db).Definitions() {
		if err := reg.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the tools in listing order.
func (t *Tools) Definitions() []registry.Tool {
	return []registry.Tool{
		registry.NewTool("list_db_tables", func(ctx context.Context, _ ListTablesArgs) (any, error) {
			return t.ListTables(ctx), nil
		}, registry.WithDescription("Lists all tables in the SQLite database.")),
		registry.NewTool("get_table_schema", func(ctx context.Context, a TableArgs) (any, error) {
			return t.Schema(ctx, a.TableName)
		}, registry.WithDescription("Gets the column names and types of a table.")),
		registry.NewTool("query_db_table", func(ctx context.Context, a QueryArgs) (any, error) {
			return t.Query(ctx, a.TableName, a.Columns, a.Condition)
		}, registry.WithDescription("Queries a table with an optional condition and returns the matching rows.")),
		registry.NewTool("insert_data", func(ctx context.Context, a InsertArgs) (any, error) {
			return t.Insert(ctx, a.TableName, a.Data), nil
		}, registry.WithDescription("Inserts a new row into a table.")),
		registry.NewTool("delete_data", func(ctx context.Context, a DeleteArgs) (any, error) {
			return t.Delete(ctx, a.TableName, a.Condition), nil
		}, registry.WithDescription("Deletes rows matching a non-empty condition from a table.")),
	}
}

// ListTables lists the tables of the database. Failures are reported in the
// result.
func (t *Tools) ListTables(ctx context.Context) ListTablesResult {
	rows, err := t.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return ListTablesResult{Message: fmt.Sprintf("Error listing tables: %v", err), Tables: []string{}}
	}
	defer func() { _ = rows.Close() }()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return ListTablesResult{Message: fmt.Sprintf("Error listing tables: %v", err), Tables: []string{}}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return ListTablesResult{Message: fmt.Sprintf("Error listing tables: %v", err), Tables: []string{}}
	}
	return ListTablesResult{Success: true, Message: "Tables listed successfully.", Tables: tables}
}

// Schema returns the columns of table. A table with no columns does not
// exist.
func (t *Tools) Schema(ctx context.Context, table string) (*SchemaResult, error) {
	q, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info("+sqlString(table)+")")
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", q, err)
	}
	defer func() { _ = rows.Close() }()

	res := &SchemaResult{TableName: table, Columns: []Column{}}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("describe %s: %w", q, err)
		}
		res.Columns = append(res.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", q, err)
	}
	if len(res.Columns) == 0 {
		return nil, fmt.Errorf("table %q not found or no schema information", table)
	}
	return res, nil
}

// Query selects columns from table, filtered by an optional raw SQL
// condition. Each row is returned as a column-to-value map.
func (t *Tools) Query(ctx context.Context, table, columns, condition string) ([]map[string]any, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}
	cols, err := quoteColumns(columns)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + cols + " FROM " + qt
	if c := strings.TrimSpace(condition); c != "" {
		query += " WHERE " + c
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query table %q: %w", table, err)
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query table %q: %w", table, err)
		}
		row := make(map[string]any, len(names))
		for i, n := range names {
			row[n] = plain(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query table %q: %w", table, err)
	}
	return out, nil
}

// Insert adds one row built from data. Failures are reported in the result.
func (t *Tools) Insert(ctx context.Context, table string, data map[string]any) InsertResult {
	if len(data) == 0 {
		return InsertResult{Message: "No data provided for insertion."}
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return InsertResult{Message: fmt.Sprintf("Error inserting data into table '%s': %v", table, err)}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		q, err := quoteIdent(k)
		if err != nil {
			return InsertResult{Message: fmt.Sprintf("Error inserting data into table '%s': %v", table, err)}
		}
		cols[i] = q
		args[i] = bindable(data[k])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", "))

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return InsertResult{Message: fmt.Sprintf("Error inserting data into table '%s': %v", table, err)}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return InsertResult{Message: fmt.Sprintf("Error inserting data into table '%s': %v", table, err)}
	}
	return InsertResult{Success: true, Message: fmt.Sprintf("Data inserted successfully. Row ID: %d", id), RowID: &id}
}

// Delete removes the rows of table matching condition. An empty condition is
// refused so a call can never clear a whole table.
func (t *Tools) Delete(ctx context.Context, table, condition string) DeleteResult {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return DeleteResult{Message: "Deletion condition cannot be empty. This is a safety measure to prevent accidental deletion of all rows."}
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return DeleteResult{Message: fmt.Sprintf("Error deleting data from table '%s': %v", table, err)}
	}

	res, err := t.db.ExecContext(ctx, "DELETE FROM "+qt+" WHERE "+condition)
	if err != nil {
		return DeleteResult{Message: fmt.Sprintf("Error deleting data from table '%s': %v", table, err)}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return DeleteResult{Message: fmt.Sprintf("Error deleting data from table '%s': %v", table, err)}
	}
	return DeleteResult{Success: true, Message: fmt.Sprintf("%d row(s) deleted successfully from table '%s'.", n, table), RowsDeleted: &n}
}

// plain converts a scanned column into a JSON-friendly value.
func plain(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// bindable narrows decoded JSON numbers so integral values bind as integers.
func bindable(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
