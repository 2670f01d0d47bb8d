package mcp

import "github.com/mark3labs/mcp-go/mcp"

// recallFactsTool defines the recall_facts MCP tool.
var recallFactsTool = mcp.NewTool("recall_facts",
	mcp.WithDescription("Semantically search the facts remembered about a user. Returns the most relevant facts for the query."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Id of the user whose memory to search"),
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language query, e.g. 'how is her mom doing'"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of facts to return (default 5)"),
	),
)

// userSummaryTool defines the user_summary MCP tool.
var userSummaryTool = mcp.NewTool("user_summary",
	mcp.WithDescription("Summarize what is remembered about a user, grouped by entity. An optional query narrows the summary to relevant facts."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("Id of the user to summarize"),
	),
	mcp.WithString("query",
		mcp.Description("Optional topic to narrow the summary to"),
	),
)

// quotaStatusTool defines the quota_status MCP tool.
var quotaStatusTool = mcp.NewTool("quota_status",
	mcp.WithDescription("Report remaining daily model call quota per model, with reset times."),
)
