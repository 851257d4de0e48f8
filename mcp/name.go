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
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// serverNameRe matches a SERVER_NAME assignment in a tool server script.
var serverNameRe = regexp.MustCompile(`(?m)^\s*SERVER_NAME\s*=\s*["']([^"']+)["']`)

// isGenericServerName reports whether the server-reported name is a
// placeholder not worth showing to users.
func isGenericServerName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cli", "mcp", "server":
		return true
	}
	return false
}

// deriveServerName finds a human-readable name for the server behind
// scriptPath: a SERVER_NAME assignment in the script when present,
// otherwise the titleized filename stem.
func deriveServerName(scriptPath string) string {
	if data, err := os.ReadFile(scriptPath); err == nil {
		if m := serverNameRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}
	return titleizeStem(scriptPath)
}

// titleizeStem turns "wifi-control_server.py" into "Wifi Control Server".
func titleizeStem(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return "Tool Server"
	}
	return cases.Title(language.English).String(stem)
}
