// Package mcp exposes the receipt parser to agents as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/core/schema"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// Server wraps the MCP SDK server. Run it with
// s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{}).
type Server struct {
	MCPServer *sdkmcp.Server
	parser    *parser.Parser
	receipts  repository.ReceiptRepository
	logger    *slog.Logger
}

// NewServer registers parse_receipt, and the review tools when receipts is
// not nil.
func NewServer(version string, p *parser.Parser, receipts repository.ReceiptRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = parser.New(parser.WithLogger(logger))
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "receipt-parser", Version: version}, nil),
		parser:    p,
		receipts:  receipts,
		logger:    logger,
	}
	sdkmcp.AddTool(s.MCPServer, MetadataParseReceipt, s.ParseReceipt)
	if receipts != nil {
		sdkmcp.AddTool(s.MCPServer, MetadataGetReceipt, s.GetReceipt)
		sdkmcp.AddTool(s.MCPServer, MetadataListReviewQueue, s.ListReviewQueue)
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// MetadataParseReceipt describes the parse_receipt tool.
var MetadataParseReceipt = &sdkmcp.Tool{
	Name: "parse_receipt",
	Description: "Extract vendor, total amount, currency, date and tax from receipt text " +
		"(OCR output or an email body converted to text). Returns each field (null when there " +
		"is no evidence), an overall confidence in [0,1], a needs_review flag, and debug " +
		"details with ranked alternatives for low-confidence fields. Currency is never guessed.",
	InputSchema: map[string]any{
		"type":     "object",
		"required": []string{"text"},
		"properties": map[string]any{
			"text":            str("Raw receipt text"),
			"sender_domain":   str("Email sender domain, e.g. uber.com"),
			"sender_name":     str("Email sender display name"),
			"subject":         str("Email subject line"),
			"user_locale":     str("BCP 47 locale used to order ambiguous numeric dates, e.g. en-GB"),
			"user_currency":   str("ISO 4217 code the user usually pays in"),
			"billing_country": str("Billing country name or ISO code"),
		},
	},
}

// InputParseReceipt is the input for the parse_receipt tool.
type InputParseReceipt struct {
	Text           string `json:"text"`
	SenderDomain   string `json:"sender_domain"`
	SenderName     string `json:"sender_name"`
	Subject        string `json:"subject"`
	UserLocale     string `json:"user_locale"`
	UserCurrency   string `json:"user_currency"`
	BillingCountry string `json:"billing_country"`
}

// ParseReceipt runs the parser. Blank text is a tool error.
func (s *Server) ParseReceipt(_ context.Context, _ *sdkmcp.CallToolRequest, in InputParseReceipt) (*sdkmcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, nil, fmt.Errorf("text is required")
	}
	res := s.parser.Parse(in.Text, &parser.Context{
		SenderDomain:   in.SenderDomain,
		SenderName:     in.SenderName,
		Subject:        in.Subject,
		UserLocale:     in.UserLocale,
		UserCurrency:   in.UserCurrency,
		BillingCountry: in.BillingCountry,
	})
	if err := schema.ValidateResult(res); err != nil {
		s.logger.Error("parse result failed schema validation", "error", err)
		return nil, nil, err
	}
	s.logger.Info("mcp.parse_receipt", "bytes", len(in.Text), "confidence", res.Confidence, "needs_review", res.NeedsReview)
	return nil, res, nil
}

// MetadataGetReceipt describes the get_receipt tool.
var MetadataGetReceipt = &sdkmcp.Tool{
	Name:        "get_receipt",
	Description: "Fetch a stored receipt by ID, including currency provenance, review status and corrections.",
	InputSchema: map[string]any{
		"type":       "object",
		"required":   []string{"id"},
		"properties": map[string]any{"id": str("Receipt UUID")},
	},
}

type InputGetReceipt struct {
	ID string `json:"id"`
}

func (s *Server) GetReceipt(ctx context.Context, _ *sdkmcp.CallToolRequest, in InputGetReceipt) (*sdkmcp.CallToolResult, any, error) {
	id, err := uuid.Parse(strings.TrimSpace(in.ID))
	if err != nil {
		return nil, nil, fmt.Errorf("id must be a UUID")
	}
	rec, err := s.receipts.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return nil, rec, nil
}

// MetadataListReviewQueue describes the list_review_queue tool.
var MetadataListReviewQueue = &sdkmcp.Tool{
	Name:        "list_review_queue",
	Description: "List stored receipts that still need manual review, newest first.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": repository.MaxListLimit, "description": "Maximum receipts to return (default 50)"},
		},
	},
}

type InputListReviewQueue struct {
	Limit int `json:"limit"`
}

type OutputListReviewQueue struct {
	Count    int               `json:"count"`
	Receipts []*entity.Receipt `json:"receipts"`
}

func (s *Server) ListReviewQueue(ctx context.Context, _ *sdkmcp.CallToolRequest, in InputListReviewQueue) (*sdkmcp.CallToolResult, any, error) {
	pending := true
	recs, err := s.receipts.List(ctx, repository.ListFilter{NeedsReview: &pending, Limit: in.Limit})
	if err != nil {
		return nil, nil, err
	}
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	return nil, OutputListReviewQueue{Count: len(recs), Receipts: recs}, nil
}
