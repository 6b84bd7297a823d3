package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

type queryArgs struct {
	TableName string   `json:"table_name" jsonschema:"description=Table to query"`
	Columns   []string `json:"columns,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

func TestReflectInputSchema(t *testing.T) {
	s := ReflectInputSchema[queryArgs](false)

	require.Equal(t, protocol.TypeObject, s.Type)
	require.False(t, s.AdditionalProperties)
	require.Equal(t, []string{"table_name"}, s.Required)

	require.Equal(t, protocol.TypeString, s.Properties["table_name"].Type)
	require.Equal(t, "Table to query", s.Properties["table_name"].Description)
	require.Equal(t, protocol.TypeArray, s.Properties["columns"].Type)
	require.NotNil(t, s.Properties["columns"].Items)
	require.Equal(t, protocol.TypeString, s.Properties["columns"].Items.Type)
	require.Equal(t, protocol.TypeInteger, s.Properties["limit"].Type)
}

func TestReflectInputSchema_NonObject(t *testing.T) {
	s := ReflectInputSchema[string](true)
	require.Equal(t, protocol.TypeObject, s.Type)
	require.True(t, s.AdditionalProperties)
	require.Empty(t, s.Properties)
}

func TestNewTool_DecodesAndEncodes(t *testing.T) {
	var got queryArgs
	tool := NewTool("query", func(_ context.Context, a queryArgs) (any, error) {
		got = a
		return []map[string]any{{"id": 1}}, nil
	}, WithDescription("Query a table"))

	require.Equal(t, "query", tool.Descriptor.Name)
	require.Equal(t, "Query a table", tool.Descriptor.Description)

	v, err := tool.Handler.Call(context.Background(), protocol.Arguments{
		"table_name": protocol.String("users"),
		"columns":    protocol.List(protocol.String("id")),
		"limit":      protocol.Int(2),
	})
	require.NoError(t, err)
	require.Equal(t, queryArgs{TableName: "users", Columns: []string{"id"}, Limit: 2}, got)

	rows, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestNewTool_StrictDecoding(t *testing.T) {
	tool := NewTool("query", func(_ context.Context, a queryArgs) (any, error) {
		return nil, nil
	})

	_, err := tool.Handler.Call(context.Background(), protocol.Arguments{
		"table_name": protocol.String("users"),
		"extra":      protocol.Bool(true),
	})
	var ave *protocol.ArgumentValidationError
	require.True(t, errors.As(err, &ave))
}

func TestNewTool_HandlerErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	tool := NewTool("query", func(_ context.Context, a queryArgs) (any, error) {
		return nil, boom
	})

	_, err := tool.Handler.Call(context.Background(), protocol.Arguments{"table_name": protocol.String("t")})
	require.ErrorIs(t, err, boom)
}
