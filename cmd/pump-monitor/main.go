package main

import "github.com/oshokin/pump-monitor/cmd/pump-monitor/cmd"

func main() {
	cmd.Execute()
}
