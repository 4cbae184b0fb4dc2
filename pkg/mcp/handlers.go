package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/doc-images/pkg/models"
	"github.com/Sriram-PR/doc-images/pkg/orchestrate"
)

// handlePlaceImages handles the place_images tool
func (s *Server) handlePlaceImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("document", "")
	if strings.TrimSpace(raw) == "" {
		return mcp.NewToolResultError("document parameter is required"), nil
	}

	var doc orchestrate.PlaceRequest
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid document JSON: %v", err)), nil
	}
	if len(doc.Images) == 0 && len(doc.Pages) == 0 && len(doc.Sitemaps) == 0 {
		return mcp.NewToolResultError("document has no images, pages or sitemaps"), nil
	}

	res, err := s.svc.Place(ctx, doc)
	if err != nil {
		s.log.Errorf("place_images failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("placement failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleInspectImage handles the inspect_image tool
func (s *Server) handleInspectImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := request.GetString("url", "")
	if url == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	ref := models.ImageRef{URL: url, Alt: request.GetString("alt", "")}

	return mcp.NewToolResultText(formatJSON(s.svc.Inspect(ctx, ref))), nil
}

// handleShouldSkipImage handles the should_skip_image tool
func (s *Server) handleShouldSkipImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := request.GetString("url", "")
	if url == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	reason := s.svc.SkipReason(url, request.GetString("alt", ""))

	result := map[string]interface{}{
		"url":  url,
		"skip": reason != "",
	}
	if reason != "" {
		result["reason"] = reason
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
