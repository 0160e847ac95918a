//go:build statsview

package main

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const statsAddress = "localhost:12600"

// launchStats serves runtime charts and pprof on statsAddress.
func launchStats(output io.Writer) bool {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsAddress))
		mgr := statsview.New()
		mgr.Start()
	}()
	fmt.Fprintf(output, "stats server available at %s/debug/statsview\n", statsAddress)
	return true
}
