package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgellow/riot-front/internal/api"
	"github.com/dgellow/riot-front/internal/credentials"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Tool names
const (
	SessionStatus      = "session_status"
	PlayerInfo         = "player_info"
	MatchHistory       = "match_history"
	CompetitiveUpdates = "competitive_updates"
	Wallet             = "wallet"
)

const (
	argStartIndex = "start_index"
	argEndIndex   = "end_index"
)

const errNoSession = "No active session. Sign in through the browser first."

// endpointTool maps an MCP tool onto one partitioned API endpoint
type endpointTool struct {
	name     string
	endpoint string
}

var endpointTools = []endpointTool{
	{name: PlayerInfo, endpoint: api.PlayerInfo},
	{name: MatchHistory, endpoint: api.MatchHistory},
	{name: CompetitiveUpdates, endpoint: api.CompetitiveUpdates},
	{name: Wallet, endpoint: api.Wallet},
}

func (d endpointTool) tool() mcp.Tool {
	ep, _ := api.Lookup(d.endpoint)

	opts := []mcp.ToolOption{
		mcp.WithDescription(ep.Description),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	if ep.Paged {
		opts = append(opts,
			mcp.WithNumber(argStartIndex,
				mcp.Description("Index of the first entry to return"),
				mcp.DefaultNumber(float64(api.DefaultPage.Start)),
				mcp.Min(0),
			),
			mcp.WithNumber(argEndIndex,
				mcp.Description("Index one past the last entry to return"),
				mcp.DefaultNumber(float64(api.DefaultPage.End)),
				mcp.Min(1),
			),
		)
	}
	return mcp.NewTool(d.name, opts...)
}

func sessionStatusTool() mcp.Tool {
	return mcp.NewTool(
		SessionStatus,
		mcp.WithDescription("Reports whether the session is signed in, and its subject, region and shard"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func sessionStatusHandler() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, ok := session.FromContext(ctx)
		if !ok {
			return mcp.NewToolResultError(errNoSession), nil
		}
		return jsonResult(handle.Machine.Snapshot())
	}
}

func endpointHandler(fetcher Fetcher, endpoint string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, ok := session.FromContext(ctx)
		if !ok {
			return mcp.NewToolResultError(errNoSession), nil
		}

		page := api.Page{
			Start: request.GetInt(argStartIndex, api.DefaultPage.Start),
			End:   request.GetInt(argEndIndex, api.DefaultPage.End),
		}

		body, err := fetcher.Fetch(ctx, handle.Machine.Snapshot(), endpoint, page)
		if err != nil {
			return fetchErrorResult(endpoint, err), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func fetchErrorResult(endpoint string, err error) *mcp.CallToolResult {
	var apiErr *api.Error
	switch {
	case errors.Is(err, credentials.ErrNotAuthenticated):
		return mcp.NewToolResultError("Session is not authenticated. Sign in through the browser first.")
	case errors.Is(err, api.ErrInvalidPage):
		return mcp.NewToolResultErrorFromErr("invalid page", err)
	case errors.As(err, &apiErr):
		log.LogWarnWithFields("tools", "Partitioned API rejected request", map[string]any{
			"endpoint": endpoint,
			"status":   apiErr.StatusCode,
		})
		return mcp.NewToolResultErrorFromErr(endpoint+" failed", err)
	default:
		log.LogErrorWithFields("tools", "Partitioned API call failed", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return mcp.NewToolResultErrorFromErr(endpoint+" failed", err)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
