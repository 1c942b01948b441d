package main

import (
	shipyardcmd "github.com/initializ/shipyard/cmd"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	shipyardcmd.SetVersionInfo(version, commit)
	shipyardcmd.Execute()
}
