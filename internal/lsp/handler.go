package lsp

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"stackprot/internal/config"
)

// Define the set of supported semantic token types advertised in the legend
var SemanticTokenTypes = []string{
	"namespace",
	"type",
	"function",
	"variable",
	"parameter",
	"keyword",
	"modifier",
	"number",
	"comment",
}

// Define the set of supported semantic token modifiers
var SemanticTokenModifiers = []string{
	"declaration",
}

// IRHandler implements the LSP server handlers for textual IR files
type IRHandler struct {
	mu      sync.RWMutex
	opts    config.Options
	content map[string]string
	log     commonlog.Logger
}

// NewIRHandler creates a handler that analyzes documents with the given
// pass options
func NewIRHandler(opts config.Options) *IRHandler {
	return &IRHandler{
		opts:    opts,
		content: make(map[string]string),
		log:     commonlog.GetLogger("stackprot.lsp"),
	}
}

// Initialize responds to the LSP client's initialize request and advertises the server's capabilities
func (h *IRHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.log.Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is called after the client receives the server's capabilities
func (h *IRHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	h.log.Info("initialized")
	return nil
}

// Shutdown handles the LSP shutdown request
func (h *IRHandler) Shutdown(ctx *glsp.Context) error {
	h.log.Info("shutdown")
	return nil
}

func (h *IRHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// TextDocumentDidOpen analyzes a newly opened document
func (h *IRHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.log.Debugf("opened %s", params.TextDocument.URI)
	return h.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

// TextDocumentDidChange re-analyzes a document. Only full synchronization is
// advertised, so the last change carries the whole text.
func (h *IRHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	h.log.Debugf("changed %s", params.TextDocument.URI)

	text, ok := "", false
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text, ok = c.Text, true
		case protocol.TextDocumentContentChangeEvent:
			text, ok = c.Text, c.Range == nil
		}
	}
	if !ok {
		return fmt.Errorf("%s: expected a full document change", params.TextDocument.URI)
	}
	return h.update(ctx, params.TextDocument.URI, text)
}

// TextDocumentDidClose forgets a document
func (h *IRHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.log.Debugf("closed %s", params.TextDocument.URI)

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, params.TextDocument.URI)
	return nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the entire document
func (h *IRHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	h.mu.RLock()
	text, ok := h.content[params.TextDocument.URI]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown document %s", params.TextDocument.URI)
	}

	tokens, err := collectSemanticTokens(text)
	if err != nil {
		return nil, err
	}

	var data []uint32
	var prevLine, prevStart uint32

	// Encode tokens into LSP wire format (using delta-line, delta-start compression)
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}

		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}

	return &protocol.SemanticTokens{
		Data: data,
	}, nil
}

func (h *IRHandler) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	path, err := uriToPath(uri)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.content[uri] = text
	h.mu.Unlock()

	diagnostics := Analyze(path, text, h.opts)
	h.log.Debugf("%s: %d diagnostics", path, len(diagnostics))
	if ctx != nil && ctx.Notify != nil {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: diagnostics,
		})
	}
	return nil
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// On Windows, remove leading slash (e.g., /C:/...) to get C:/...
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
