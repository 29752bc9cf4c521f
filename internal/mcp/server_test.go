package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	mcpserver "github.com/joseph-ayodele/receipt-parser/internal/mcp"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
	"github.com/joseph-ayodele/receipt-parser/internal/repository/repotest"
)

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, s *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text, res.IsError
}

func TestListTools(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer("test", nil, nil, nil))
	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"parse_receipt"}, names)
}

func TestParseReceiptTool(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer("test", nil, nil, nil))

	text, isErr := callTool(t, ctx, session, "parse_receipt", map[string]any{
		"text":          "Date: 03/01/2024\nTotal: CA$23.40",
		"sender_domain": "uber.com",
	})
	require.False(t, isErr, text)

	var res parser.Result
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	require.NotNil(t, res.Vendor)
	assert.Equal(t, "Uber", *res.Vendor)
	require.NotNil(t, res.Amount)
	assert.True(t, decimal.RequireFromString("23.40").Equal(*res.Amount))
	assert.Equal(t, "CAD", *res.Currency)
	assert.NotNil(t, res.Debug.PatternsMatched)
}

func TestParseReceiptToolRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, mcpserver.NewServer("test", nil, nil, nil))
	text, isErr := callTool(t, ctx, session, "parse_receipt", map[string]any{"text": "   "})
	assert.True(t, isErr)
	assert.Contains(t, text, "text is required")
}

func TestReviewTools(t *testing.T) {
	ctx := context.Background()
	db := repotest.New(t)
	receipts := repository.NewReceiptRepository(db, "USD", nil)
	p := parser.New()

	flagged, err := receipts.Save(ctx, p.Parse("Total: 12.00", nil), repository.FileMeta{}, nil)
	require.NoError(t, err)
	require.True(t, flagged.NeedsReview)

	session := connectInMemory(t, ctx, mcpserver.NewServer("test", p, receipts, nil))

	text, isErr := callTool(t, ctx, session, "list_review_queue", map[string]any{"limit": 10})
	require.False(t, isErr, text)
	var queue struct {
		Count    int `json:"count"`
		Receipts []struct {
			ID string `json:"id"`
		} `json:"receipts"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &queue))
	require.Equal(t, 1, queue.Count)
	assert.Equal(t, flagged.ID.String(), queue.Receipts[0].ID)

	text, isErr = callTool(t, ctx, session, "get_receipt", map[string]any{"id": flagged.ID.String()})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"currency_source":"defaulted_to_USD"`)

	text, isErr = callTool(t, ctx, session, "get_receipt", map[string]any{"id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "UUID")
}
