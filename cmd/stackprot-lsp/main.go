// SPDX-License-Identifier: Apache-2.0
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"stackprot/internal/config"
	"stackprot/internal/lsp"
)

const lsName = "stackprot"

// configEnv names an optional pass configuration file
const configEnv = "STACKPROT_CONFIG"

var handler protocol.Handler

func main() {
	commonlog.Configure(1, nil)

	opts := config.Default()
	if path := os.Getenv(configEnv); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Println("Ignoring configuration:", err)
		} else {
			opts = loaded
		}
	}

	irHandler := lsp.NewIRHandler(opts)

	handler = protocol.Handler{
		Initialize:                     irHandler.Initialize,
		Initialized:                    irHandler.Initialized,
		Shutdown:                       irHandler.Shutdown,
		SetTrace:                       irHandler.SetTrace,
		TextDocumentDidOpen:            irHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           irHandler.TextDocumentDidClose,
		TextDocumentDidChange:          irHandler.TextDocumentDidChange,
		TextDocumentSemanticTokensFull: irHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Println("Starting stackprot LSP server...")

	if err := s.RunStdio(); err != nil {
		log.Println("Error starting stackprot LSP server:", err)
		os.Exit(1)
	}
}
