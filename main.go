// Command cloud-sim replays scripted VM and power commands against a
// simulated cloud. See cmd/ for the run and validate subcommands.
package main

import "github.com/cloud-sim/cloud-sim/cmd"

func main() {
	cmd.Execute()
}
