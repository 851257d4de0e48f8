//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

//go:build linux

package mcp

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/hearthd/hearth/log"
)

// sweepOrphans scans the process table for direct children of this process
// whose command line matches a tool-server pattern and kills them. It is a
// last-resort cleanup for children that survived the teardown ladder, for
// example because the server re-spawned a helper outside its group. Returns
// the number of processes signalled.
func sweepOrphans() int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		log.Debugf("mcp: orphan sweep skipped: %v", err)
		return 0
	}

	self := os.Getpid()
	killed := 0
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		if parentOf(pid) != self {
			continue
		}
		cmdline := cmdlineOf(pid)
		if !matchesOrphanPattern(cmdline) {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGKILL); err == nil {
			log.Warnf("mcp: killed orphaned tool server pid %d (%s)", pid, cmdline)
			killed++
		}
	}
	return killed
}

// parentOf returns the ppid from /proc/<pid>/stat, or 0 when unreadable.
// The comm field may contain spaces and parentheses, so parsing starts
// after the final ')'.
func parentOf(pid int) int {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	stat := string(data)
	end := strings.LastIndexByte(stat, ')')
	if end < 0 || end+2 >= len(stat) {
		return 0
	}
	fields := strings.Fields(stat[end+2:])
	if len(fields) < 2 {
		return 0
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return ppid
}

// cmdlineOf returns the NUL-separated command line joined with spaces.
func cmdlineOf(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " "))
}
