//go:build linux

package process

import (
	"bytes"
	"os"
	"strconv"
)

// groupAlive reports whether any non-zombie process belongs to group pgid.
//
// Zombies are ignored: killed descendants are reparented and reaped by init,
// they no longer run.
func groupAlive(pgid int) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		stat, err := os.ReadFile("/proc/" + entry.Name() + "/stat")
		if err != nil {
			continue
		}
		state, group, ok := parseStat(stat)
		if !ok || group != pgid {
			continue
		}
		if state != 'Z' && state != 'X' {
			return true
		}
	}
	return false
}

// parseStat extracts the state and process group from a /proc/<pid>/stat line.
// The command name may contain spaces and parentheses, so parsing starts after
// the last closing parenthesis.
func parseStat(stat []byte) (state byte, pgrp int, ok bool) {
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return 0, 0, false
	}
	fields := bytes.Fields(stat[idx+1:])
	// state ppid pgrp ...
	if len(fields) < 3 || len(fields[0]) == 0 {
		return 0, 0, false
	}
	pgrp, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return 0, 0, false
	}
	return fields[0][0], pgrp, true
}
