package main

import "github.com/anushkapunekar/agentops/cmd"

func main() {
	cmd.Execute()
}
