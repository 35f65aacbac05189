package main

import "TechPulse/client/pulse-cli/cmd"

func main() {
	cmd.Execute()
}
