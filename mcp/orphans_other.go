//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

//go:build !linux

package mcp

// sweepOrphans needs the proc filesystem; elsewhere the teardown ladder is
// the only cleanup.
func sweepOrphans() int {
	return 0
}
