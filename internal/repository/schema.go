package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableFiles    = "receipt_files"
	tableReceipts = "receipts"
)

var moneyType = map[string]string{dialect.Postgres: "numeric(14,2)"}

var (
	// FilesColumns holds the columns for the "receipt_files" table.
	FilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "source_path", Type: field.TypeString},
		{Name: "content_hash", Type: field.TypeBytes, Unique: true, SchemaType: map[string]string{dialect.Postgres: "bytea"}},
		{Name: "mime_type", Type: field.TypeString},
		{Name: "file_size", Type: field.TypeInt64},
		{Name: "uploaded_at", Type: field.TypeTime},
	}
	// FilesTable holds the schema information for the "receipt_files" table.
	FilesTable = &schema.Table{
		Name:       tableFiles,
		Columns:    FilesColumns,
		PrimaryKey: []*schema.Column{FilesColumns[0]},
	}

	// ReceiptsColumns holds the columns for the "receipts" table.
	ReceiptsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "vendor", Type: field.TypeString, Nullable: true},
		{Name: "amount", Type: field.TypeFloat64, Nullable: true, SchemaType: moneyType},
		{Name: "currency", Type: field.TypeString, Nullable: true, Size: 3},
		{Name: "currency_source", Type: field.TypeString, Nullable: true},
		{Name: "date", Type: field.TypeString, Nullable: true, Size: 10},
		{Name: "tax", Type: field.TypeFloat64, Nullable: true, SchemaType: moneyType},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "needs_review", Type: field.TypeBool},
		{Name: "review_status", Type: field.TypeString},
		{Name: "review_reason", Type: field.TypeString, Nullable: true},
		{Name: "warnings", Type: field.TypeJSON},
		{Name: "parse_debug", Type: field.TypeJSON, Nullable: true},
		{Name: "user_corrections", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "file_id", Type: field.TypeUUID, Nullable: true},
	}
	// ReceiptsTable holds the schema information for the "receipts" table.
	ReceiptsTable = &schema.Table{
		Name:       tableReceipts,
		Columns:    ReceiptsColumns,
		PrimaryKey: []*schema.Column{ReceiptsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "receipts_receipt_files_receipts",
				Columns:    []*schema.Column{ReceiptsColumns[16]},
				RefColumns: []*schema.Column{FilesColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "receipt_needs_review_created_at",
				Unique:  false,
				Columns: []*schema.Column{ReceiptsColumns[8], ReceiptsColumns[14]},
			},
			{
				Name:    "receipt_file_id",
				Unique:  false,
				Columns: []*schema.Column{ReceiptsColumns[16]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		FilesTable,
		ReceiptsTable,
	}
)

func init() {
	ReceiptsTable.ForeignKeys[0].RefTable = FilesTable
}

// receiptColumns is the select list matching scanReceipt.
var receiptColumns = func() []string {
	names := make([]string, len(ReceiptsColumns))
	for i, c := range ReceiptsColumns {
		names[i] = c.Name
	}
	return names
}()

var fileColumns = func() []string {
	names := make([]string, len(FilesColumns))
	for i, c := range FilesColumns {
		names[i] = c.Name
	}
	return names
}()

// Migrate creates or updates the tables.
func (db *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(entsql.OpenDB(db.dialect, db.SQL))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		db.logger.Error("migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	db.logger.Info("schema migrated", "dialect", db.dialect, "tables", len(Tables))
	return nil
}
