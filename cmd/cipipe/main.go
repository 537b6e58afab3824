package main

import (
	"os"

	cipipe "github.com/0xa1bed0/cipipe/internal/apps/cipipe/cmds"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/runtime"
)

func main() {
	logs.SetComponent(detectComponent("cipipe"))

	var execErr error

	rt := runtime.New()
	defer rt.Finalize("cipipe", "Type 'cipipe help' to get help.", &execErr)

	execErr = cipipe.Execute(rt)
}

func detectComponent(base string) string {
	if len(os.Args) > 1 && len(os.Args[1]) > 0 && os.Args[1][0] != '-' {
		return base + ":" + os.Args[1]
	}
	return base
}
