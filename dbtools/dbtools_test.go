package dbtools

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SystemSolution21/adk-mcp/internal/dispatch"
	"github.com/SystemSolution21/adk-mcp/protocol"
	"github.com/SystemSolution21/adk-mcp/registry"
)

func openSeeded(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_SeedsFreshDatabase(t *testing.T) {
	db := openSeeded(t)

	var users, todos int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM todos`).Scan(&todos))
	require.Equal(t, 2, users)
	require.Equal(t, 3, todos)
}

func TestOpen_ExistingFileNotReseeded(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(ctx, path, true)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM todos`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path, true)
	require.NoError(t, err)
	defer db.Close()
	var todos int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM todos`).Scan(&todos))
	require.Equal(t, 0, todos)
}

func TestOpen_NoSeed(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "empty.db"), false)
	require.NoError(t, err)
	defer db.Close()

	res := New(db).ListTables(context.Background())
	require.True(t, res.Success)
	require.Empty(t, res.Tables)
}

func TestListTables(t *testing.T) {
	res := New(openSeeded(t)).ListTables(context.Background())
	require.True(t, res.Success)
	require.Equal(t, "Tables listed successfully.", res.Message)
	require.Contains(t, res.Tables, "users")
	require.Contains(t, res.Tables, "todos")
}

func TestSchema(t *testing.T) {
	tools := New(openSeeded(t))
	ctx := context.Background()

	res, err := tools.Schema(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, "users", res.TableName)
	require.Equal(t, []Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "username", Type: "TEXT"},
		{Name: "email", Type: "TEXT"},
	}, res.Columns)

	_, err = tools.Schema(ctx, "nope")
	require.ErrorContains(t, err, "not found")

	_, err = tools.Schema(ctx, "users; DROP TABLE users")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestQuery(t *testing.T) {
	tools := New(openSeeded(t))
	ctx := context.Background()

	tests := []struct {
		name      string
		table     string
		columns   string
		condition string
		wantRows  int
		wantErr   bool
	}{
		{name: "all", table: "todos", wantRows: 3},
		{name: "star", table: "todos", columns: "*", wantRows: 3},
		{name: "condition", table: "todos", columns: "id, task", condition: "user_id = 1", wantRows: 2},
		{name: "no match", table: "users", condition: "id = 99", wantRows: 0},
		{name: "bad column", table: "users", columns: "id, name;", wantErr: true},
		{name: "unknown table", table: "missing", wantErr: true},
		{name: "bad condition", table: "users", condition: "id ===", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := tools.Query(ctx, tt.table, tt.columns, tt.condition)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, rows, tt.wantRows)
		})
	}

	rows, err := tools.Query(ctx, "users", "username", "email = 'user2@example.com'")
	require.NoError(t, err)
	require.Equal(t, []map[string]any{{"username": "user2"}}, rows)
}

func TestInsert(t *testing.T) {
	tools := New(openSeeded(t))
	ctx := context.Background()

	res := tools.Insert(ctx, "users", map[string]any{"username": "user3", "email": "user3@example.com"})
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.RowID)
	require.EqualValues(t, 3, *res.RowID)
	require.Equal(t, "Data inserted successfully. Row ID: 3", res.Message)

	res = tools.Insert(ctx, "todos", map[string]any{"user_id": float64(3), "task": "Write tests", "completed": false})
	require.True(t, res.Success, res.Message)

	res = tools.Insert(ctx, "users", nil)
	require.False(t, res.Success)
	require.Equal(t, "No data provided for insertion.", res.Message)
	require.Nil(t, res.RowID)

	// Violates the unique email constraint.
	res = tools.Insert(ctx, "users", map[string]any{"username": "dup", "email": "user1@example.com"})
	require.False(t, res.Success)
	require.Contains(t, res.Message, "Error inserting data into table 'users'")

	res = tools.Insert(ctx, "users", map[string]any{"bad col": "x"})
	require.False(t, res.Success)
}

func TestDelete(t *testing.T) {
	tools := New(openSeeded(t))
	ctx := context.Background()

	res := tools.Delete(ctx, "todos", "   ")
	require.False(t, res.Success)
	require.Contains(t, res.Message, "cannot be empty")

	res = tools.Delete(ctx, "todos", "completed = 1")
	require.True(t, res.Success, res.Message)
	require.EqualValues(t, 1, *res.RowsDeleted)
	require.Equal(t, "1 row(s) deleted successfully from table 'todos'.", res.Message)

	res = tools.Delete(ctx, "missing", "id = 1")
	require.False(t, res.Success)
	require.Contains(t, res.Message, "Error deleting data from table 'missing'")
}

func TestRegister_ThroughDispatcher(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	require.NoError(t, Register(reg, openSeeded(t)))

	names := make([]string, 0, reg.Len())
	for _, d := range reg.List() {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"list_db_tables", "get_table_schema", "query_db_table", "insert_data", "delete_data"}, names)

	d := dispatch.New(reg)
	ctx := context.Background()
	call := func(tool string, args protocol.Arguments) *protocol.CallResponse {
		return d.Call(ctx, &protocol.CallRequest{ID: protocol.NewID("1"), Tool: tool, Arguments: args})
	}

	res := call("query_db_table", protocol.Arguments{"table_name": protocol.String("users"), "condition": protocol.String("id = 1")})
	require.True(t, res.OK)
	rows, ok := res.Value.AsList()
	require.True(t, ok)
	require.Len(t, rows, 1)
	row, _ := rows[0].AsMap()
	name, _ := row["username"].AsString()
	require.Equal(t, "user1", name)

	res = call("get_table_schema", protocol.Arguments{"table_name": protocol.String("nope")})
	require.False(t, res.OK)
	require.Equal(t, protocol.KindDomain, res.Error.Kind)

	res = call("insert_data", protocol.Arguments{
		"table_name": protocol.String("todos"),
		"data": protocol.Map(map[string]protocol.Value{
			"user_id": protocol.Int(2),
			"task":    protocol.String("Walk the dog"),
		}),
	})
	require.True(t, res.OK)
	out, _ := res.Value.AsMap()
	success, _ := out["success"].AsBool()
	require.True(t, success)
	rowID, _ := out["row_id"].AsInt()
	require.EqualValues(t, 4, rowID)

	res = call("delete_data", protocol.Arguments{"table_name": protocol.String("todos")})
	require.False(t, res.OK)
	require.Equal(t, protocol.KindArgumentValidation, res.Error.Kind)

	res = call("list_db_tables", protocol.Arguments{"dummy_param": protocol.String("x")})
	require.True(t, res.OK)
}

func TestQuoteColumns(t *testing.T) {
	got, err := quoteColumns(" id ,username")
	require.NoError(t, err)
	require.Equal(t, `"id", "username"`, got)

	_, err = quoteColumns("id, 1=1")
	require.True(t, errors.Is(err, ErrInvalidIdentifier))
}
