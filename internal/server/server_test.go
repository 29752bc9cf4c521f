package server

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/core"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/export"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
	"github.com/joseph-ayodele/receipt-parser/internal/repository/repotest"
)

func ptr[T any](v T) *T { return &v }

func newTestClient(t *testing.T) (*Client, *grpc.ClientConn) {
	t.Helper()
	db := repotest.New(t)
	files := repository.NewReceiptFileRepository(db, nil)
	receipts := repository.NewReceiptRepository(db, "USD", nil)
	proc := core.NewProcessor(nil, ocr.NewExtractor(ocr.Config{}, nil), files, receipts)
	svc := NewService(proc, receipts, export.NewService(receipts, files, nil), nil)

	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), conn
}

func TestParseWithoutSaving(t *testing.T) {
	c, _ := newTestClient(t)
	var resp ParseResponse
	var header metadata.MD
	err := c.Do(context.Background(), "Parse", ParseRequest{Text: "Total: | 6.99 CAD"}, &resp, grpc.Header(&header))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("6.99").Equal(*resp.Result.Amount))
	assert.Equal(t, "CAD", *resp.Result.Currency)
	assert.Nil(t, resp.Result.Tax)
	assert.Nil(t, resp.Receipt)
	assert.Len(t, header.Get(RequestIDHeader), 1)
}

func TestRequestIDIsEchoed(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "req-42")
	var header metadata.MD
	require.NoError(t, c.Do(ctx, "Parse", ParseRequest{Text: "x"}, &ParseResponse{}, grpc.Header(&header)))
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDHeader))
}

func TestParseSaveThenReviewFlow(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	var parsed ParseResponse
	require.NoError(t, c.Do(ctx, "Parse", ParseRequest{
		Text:    "Subtotal: $50.00\nTax: $5.00\nTotal: $60.00",
		Context: &parser.Context{BillingCountry: "CA"},
		Save:    true,
	}, &parsed))
	require.NotNil(t, parsed.Receipt)
	assert.True(t, parsed.Receipt.NeedsReview)
	assert.Equal(t, constants.CurrencyBillingCountry, parsed.Receipt.CurrencySource)
	assert.Equal(t, "CAD", *parsed.Receipt.Currency)

	var list ListReceiptsResponse
	require.NoError(t, c.Do(ctx, "ListReceipts", ListReceiptsRequest{NeedsReview: ptr(true)}, &list))
	require.Len(t, list.Receipts, 1)
	assert.Equal(t, parsed.Receipt.ID, list.Receipts[0].ID)

	var resolved entity.Receipt
	require.NoError(t, c.Do(ctx, "ResolveReview", ResolveReviewRequest{
		ID:          parsed.Receipt.ID.String(),
		Vendor:      ptr("Hardware Hut"),
		Amount:      ptr(decimal.RequireFromString("55.00")),
		CorrectedBy: "reviewer",
	}, &resolved))
	assert.False(t, resolved.NeedsReview)
	assert.Equal(t, constants.ReviewReviewed, resolved.ReviewStatus)
	assert.Equal(t, "60.00", *resolved.Corrections["amount"].Original)

	var got entity.Receipt
	require.NoError(t, c.Do(ctx, "GetReceipt", GetReceiptRequest{ID: parsed.Receipt.ID.String()}, &got))
	assert.Equal(t, "Hardware Hut", *got.Vendor)

	require.NoError(t, c.Do(ctx, "ListReceipts", ListReceiptsRequest{NeedsReview: ptr(true)}, &list))
	assert.Empty(t, list.Receipts)
}

func TestParseFileAndExport(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	body := []byte("<html><body><h1>Uber</h1><p>Date: 03/01/2024</p><p>Total: CA$23.40</p></body></html>")

	var first ParseFileResponse
	require.NoError(t, c.Do(ctx, "ParseFile", ParseFileRequest{Filename: "uber.html", Content: body}, &first))
	require.NotNil(t, first.Extraction)
	assert.Equal(t, "html", first.Extraction.Method)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, "CAD", *first.Receipt.Currency)

	var again ParseFileResponse
	require.NoError(t, c.Do(ctx, "ParseFile", ParseFileRequest{Filename: "copy.html", Content: body}, &again))
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.Receipt.ID, again.Receipt.ID)
	assert.Equal(t, first.FileID, again.FileID)

	var exp ExportReceiptsResponse
	require.NoError(t, c.Do(ctx, "ExportReceipts", ExportReceiptsRequest{From: "2024-01-01"}, &exp))
	assert.Contains(t, exp.Filename, ".xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(exp.Content))
	require.NoError(t, err)
	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestErrorCodes(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	tests := []struct {
		name   string
		method string
		req    any
		code   codes.Code
	}{
		{"missing id", "GetReceipt", GetReceiptRequest{}, codes.InvalidArgument},
		{"bad id", "GetReceipt", GetReceiptRequest{ID: "nope"}, codes.InvalidArgument},
		{"unknown receipt", "GetReceipt", GetReceiptRequest{ID: "7f1c8a52-3c1e-4c8e-9a51-0d6a7b0c2e11"}, codes.NotFound},
		{"bad status", "ListReceipts", ListReceiptsRequest{ReviewStatus: "done"}, codes.InvalidArgument},
		{"empty upload", "ParseFile", ParseFileRequest{Filename: "a.pdf"}, codes.InvalidArgument},
		{"unsupported upload", "ParseFile", ParseFileRequest{Filename: "a.zip", Content: []byte("x")}, codes.InvalidArgument},
		{"bad correction", "ResolveReview", ResolveReviewRequest{ID: "7f1c8a52-3c1e-4c8e-9a51-0d6a7b0c2e11", Currency: ptr("usd")}, codes.InvalidArgument},
		{"bad export date", "ExportReceipts", ExportReceiptsRequest{To: "31/12/2024"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Do(ctx, tt.method, tt.req, &map[string]any{})
			assert.Equal(t, tt.code, status.Code(err), "error: %v", err)
		})
	}
}

func TestHealth(t *testing.T) {
	_, conn := newTestClient(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
