// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docservice"
)

const contentModelURI = "folio://content-model"

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Folio tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents, optionally filtered by type."),
		mcp.WithString("type", mcp.Description("Document type, e.g. page or homePage")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read the full JSON of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (drafts.<id> for a draft)")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("put_document",
		mcp.WithDescription("Create or replace a document. The body MUST follow the Folio content "+
			"model. Read the contract first via the get_content_contract tool or the "+
			contentModelURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Document JSON object")),
		mcp.WithString("rev", mcp.Description("Expected current revision; the write fails if it changed")),
	), s.putDocument)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search documents by title and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Render a document as an HTML page or as a JSON element tree with edit addresses."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("format", mcp.Enum("html", "tree"), mcp.Description("Output format (default html)")),
	), s.renderDocument)

	s.mcp.AddTool(mcp.NewTool("generate_anchor_id",
		mcp.WithDescription("Generate the anchor id a section title produces. With a document and "+
			"section, the id is made unique among that document's other anchors."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Section title")),
		mcp.WithString("document_id", mcp.Description("Document the section belongs to")),
		mcp.WithString("section_key", mcp.Description("_key of the section")),
	), s.generateAnchorID)

	s.mcp.AddTool(mcp.NewTool("update_anchor_references",
		mcp.WithDescription("Rewrite every link that points at old_anchor_id of a document to new_anchor_id."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document owning the section")),
		mcp.WithString("old_anchor_id", mcp.Required(), mcp.Description("Previous anchor id")),
		mcp.WithString("new_anchor_id", mcp.Required(), mcp.Description("New anchor id")),
		mcp.WithString("section_key", mcp.Description("_key of the renamed section")),
	), s.updateAnchorReferences)

	s.mcp.AddTool(mcp.NewTool("find_anchor_references",
		mcp.WithDescription("List the links that point at a section anchor."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document owning the section")),
		mcp.WithString("anchor_id", mcp.Required(), mcp.Description("Anchor id")),
	), s.findAnchorReferences)

	s.mcp.AddTool(mcp.NewTool("regenerate_anchor",
		mcp.WithDescription("Regenerate a section's anchor id from its current title and update links to it."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("section_key", mcp.Required(), mcp.Description("_key of the section")),
	), s.regenerateAnchor)

	s.mcp.AddTool(mcp.NewTool("get_content_contract",
		mcp.WithDescription("Returns the Folio content model contract. "+
			"Call this before writing documents to ensure correct structure."),
	), s.getContentContract)

	// Resource: content model contract.
	s.mcp.AddResource(
		mcp.NewResource(contentModelURI, "Content Model Contract",
			mcp.WithResourceDescription("Document, section and block structure that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentModelResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("revision mismatch: read the document again and retry")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListDocuments(ctx,
		req.GetString("type", ""), req.GetInt("limit", 0), req.GetInt("offset", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"documents": items, "total": total}), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.GetDocument(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) putDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.PutDocument(ctx, id, []byte(body), req.GetString("rev", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (rev %s)", doc.ID, doc.Rev)), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) renderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetString("format", "html") == "tree" {
		el, err := s.svc.Render(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(el), nil
	}
	var buf bytes.Buffer
	if err := s.svc.RenderHTML(ctx, id, &buf); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) generateAnchorID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.PreviewAnchor(ctx, req.GetString("document_id", ""), req.GetString("section_key", ""), title)
	if err != nil {
		return errorResult(err), nil
	}
	if id == "" {
		return mcp.NewToolResultError("title produces an empty anchor id"), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) updateAnchorReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := anchors.Request{
		DocumentID:  req.GetString("document_id", ""),
		OldAnchorID: req.GetString("old_anchor_id", ""),
		NewAnchorID: req.GetString("new_anchor_id", ""),
		SectionKey:  req.GetString("section_key", ""),
	}
	res := s.svc.UpdateAnchorReferences(ctx, r)
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return jsonResult(res), nil
}

func (s *Server) findAnchorReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anchorID, err := req.RequireString("anchor_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.AnchorReferences(ctx, docID, anchorID)
	if err != nil {
		return errorResult(err), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no references found"), nil
	}
	return jsonResult(refs), nil
}

func (s *Server) regenerateAnchor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("section_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.RegenerateAnchor(ctx, docID, key)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getContentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentModelContract), nil
}

func (s *Server) readContentModelResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contentModelURI,
			MIMEType: "text/markdown",
			Text:     ContentModelContract,
		},
	}, nil
}
