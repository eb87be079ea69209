package main

import (
	"github.com/Paintersrp/procctl/internal/cli"
	"github.com/Paintersrp/procctl/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
