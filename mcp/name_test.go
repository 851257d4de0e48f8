//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveServerNameFromAssignment(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{
			name:   "double quotes",
			script: "import sys\nSERVER_NAME = \"Wifi Control\"\nprint(SERVER_NAME)\n",
			want:   "Wifi Control",
		},
		{
			name:   "single quotes",
			script: "SERVER_NAME = 'Net Tools'\n",
			want:   "Net Tools",
		},
		{
			name:   "indented assignment",
			script: "if True:\n    SERVER_NAME = \"Indented\"\n",
			want:   "Indented",
		},
		{
			name:   "no spaces around equals",
			script: "SERVER_NAME=\"Packed\"\n",
			want:   "Packed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.py")
			require.NoError(t, os.WriteFile(path, []byte(tt.script), 0o644))
			assert.Equal(t, tt.want, deriveServerName(path))
		})
	}
}

func TestDeriveServerNameFallsBackToStem(t *testing.T) {
	// No assignment in the script body.
	path := filepath.Join(t.TempDir(), "wifi-control_server.py")
	require.NoError(t, os.WriteFile(path, []byte("import sys\n"), 0o644))
	assert.Equal(t, "Wifi Control Server", deriveServerName(path))

	// Unreadable script falls back the same way.
	assert.Equal(t, "Weather Tools", deriveServerName("/nonexistent/weather-tools.py"))
}

func TestTitleizeStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"wifi-control_server.py", "Wifi Control Server"},
		{"/opt/tools/net_scan.py", "Net Scan"},
		{"weather.py", "Weather"},
		{"already titled.sh", "Already Titled"},
		{"___.py", "Tool Server"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleizeStem(tt.path), "path %q", tt.path)
	}
}

func TestIsGenericServerName(t *testing.T) {
	for _, name := range []string{"", "cli", "CLI", "server", " Server ", "mcp"} {
		assert.True(t, isGenericServerName(name), "name %q", name)
	}
	for _, name := range []string{"Wifi Control", "weather", "cli-tools"} {
		assert.False(t, isGenericServerName(name), "name %q", name)
	}
}
