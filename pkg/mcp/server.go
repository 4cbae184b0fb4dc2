// Package mcp exposes the image pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-images/pkg/orchestrate"
)

const (
	serverName    = "doc-images"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Service   *orchestrate.Service
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server around an image Service
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	svc       *orchestrate.Service
	log       *logrus.Entry
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("Service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		svc:       cfg.Service,
		log:       cfg.Logger.WithField("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	placeImagesTool := mcp.NewTool("place_images",
		mcp.WithDescription("Validate, fingerprint and deduplicate image references, then insert them into the most relevant document sections. Unmatched images go to a trailing appendix section."),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description(`JSON object: {"sections": [{"id","title","content","blocks"}], "markdown": "# ...", "images": [{"url","alt","caption","source_url"}], "pages": ["https://..."], "sitemaps": ["https://.../sitemap.xml"]}. Without sections or markdown, sections are built from the scraped pages.`),
		),
	)
	s.mcpServer.AddTool(placeImagesTool, s.handlePlaceImages)

	inspectImageTool := mcp.NewTool("inspect_image",
		mcp.WithDescription("Fetch one image and report its dimensions, type, size, hash, importance and validity"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) image URL"),
		),
		mcp.WithString("alt",
			mcp.Description("Alt text, used for importance and skip rules"),
		),
	)
	s.mcpServer.AddTool(inspectImageTool, s.handleInspectImage)

	shouldSkipTool := mcp.NewTool("should_skip_image",
		mcp.WithDescription("Check an image reference against the skip rules (logos, icons, tracking pixels, data URIs, domain filters) without fetching it"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Image URL"),
		),
		mcp.WithString("alt",
			mcp.Description("Alt text"),
		),
	)
	s.mcpServer.AddTool(shouldSkipTool, s.handleShouldSkipImage)

	s.log.Infof("Registered %d MCP tools", 3)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio", "":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown releases the service
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	return s.svc.Close()
}
