//go:build !statsview

package main

import "io"

func launchStats(io.Writer) bool {
	return false
}
