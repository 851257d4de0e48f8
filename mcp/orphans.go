//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package mcp

import "strings"

// orphanPatterns identify leftover tool server processes by command line.
var orphanPatterns = []string{"mcp", "model-control"}

// matchesOrphanPattern reports whether a command line looks like one of our
// tool servers.
func matchesOrphanPattern(cmdline string) bool {
	cmdline = strings.ToLower(cmdline)
	for _, p := range orphanPatterns {
		if strings.Contains(cmdline, p) {
			return true
		}
	}
	return false
}
