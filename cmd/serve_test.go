package cmd

import (
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "triage_start", want: "Triage Tools"},
		{name: "triage_status", want: "Triage Tools"},
		{name: "gmail_list_threads", want: "Other"},
		{name: "", want: "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getCategoryFromToolName(tt.name))
		})
	}
}

func TestListTools(t *testing.T) {
	tools, err := listTools()
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"triage_start",
		"triage_stop",
		"triage_status",
		"triage_checkpoint",
		"triage_clear",
	}, names)

	markdown := generateToolsMarkdown(tools)
	assert.True(t, strings.HasPrefix(markdown, "# MCP Tools Reference"))
	assert.Contains(t, markdown, "- [Triage Tools](#triage-tools)")
	assert.Contains(t, markdown, "### triage_start")
	assert.Contains(t, markdown, "- `resume` (optional):")
}

func TestRegisterAllTools_ReadOnly(t *testing.T) {
	sc := newDocsServerContext(t)
	mcpSrv := mcpserver.NewMCPServer("inboxtriage", "test",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	require.NoError(t, registerAllTools(mcpSrv, sc, true))

	tools := mcpSrv.ListTools()
	assert.Len(t, tools, 2)
	assert.Contains(t, tools, "triage_status")
	assert.Contains(t, tools, "triage_checkpoint")
	assert.NotContains(t, tools, "triage_start")
}
