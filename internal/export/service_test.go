package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
	"github.com/joseph-ayodele/receipt-parser/internal/repository/repotest"
)

func ptr[T any](v T) *T { return &v }

func TestExportReceiptsXLSX(t *testing.T) {
	ctx := context.Background()
	db := repotest.New(t)
	files := repository.NewReceiptFileRepository(db, nil)
	receipts := repository.NewReceiptRepository(db, "USD", nil)

	sum := sha256.Sum256([]byte("uber"))
	file, _, err := files.UpsertByHash(ctx, repository.NewFile{SourcePath: "/inbox/uber.eml", ContentHash: sum[:], MimeType: "message/rfc822", Size: 4})
	require.NoError(t, err)

	_, err = receipts.Save(ctx, parser.Result{
		Vendor: ptr("Uber"), Amount: ptr(decimal.RequireFromString("1234.50")), Currency: ptr("CAD"),
		Date: ptr("2024-03-01"), Confidence: 0.92,
	}, repository.FileMeta{FileID: &file.ID}, nil)
	require.NoError(t, err)
	_, err = receipts.Save(ctx, parser.Result{
		Amount: ptr(decimal.RequireFromString("8.00")), Date: ptr("2023-12-31"), Confidence: 0.4, NeedsReview: true,
	}, repository.FileMeta{}, nil)
	require.NoError(t, err)

	svc := NewService(receipts, files, nil)

	data, err := svc.ExportReceiptsXLSX(ctx, Filter{})
	require.NoError(t, err)
	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0][:len(headers)])

	byDate := map[string][]string{}
	for _, r := range rows[1:] {
		byDate[r[0]] = r
	}
	uber := byDate["2024-03-01"]
	require.NotNil(t, uber)
	assert.Equal(t, "Uber", uber[1])
	assert.Equal(t, "CAD", uber[3])
	assert.Equal(t, "$1,234.50", uber[4])
	assert.Equal(t, "extracted", uber[6])
	assert.Equal(t, "/inbox/uber.eml", uber[12])

	flagged := byDate["2023-12-31"]
	require.NotNil(t, flagged)
	assert.Equal(t, "defaulted_to_USD", flagged[6])
	assert.Equal(t, "TRUE", flagged[8])
	assert.Contains(t, flagged[11], "Currency defaulted to USD")

	data, err = svc.ExportReceiptsXLSX(ctx, Filter{From: "2024-01-01"})
	require.NoError(t, err)
	assert.Len(t, readRows(t, data), 2)

	data, err = svc.ExportReceiptsXLSX(ctx, Filter{NeedsReview: ptr(true)})
	require.NoError(t, err)
	rows = readRows(t, data)
	require.Len(t, rows, 2)
	assert.Equal(t, "2023-12-31", rows[1][0])
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		date     *string
		from, to string
		want     bool
	}{
		{nil, "", "", true},
		{nil, "2024-01-01", "", false},
		{ptr("2024-01-01"), "2024-01-01", "2024-01-01", true},
		{ptr("2023-12-31"), "2024-01-01", "", false},
		{ptr("2024-02-01"), "", "2024-01-31", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inWindow(tt.date, tt.from, tt.to))
	}
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}
