package main

import "github.com/xvierd/cadence/cmd"

func main() {
	cmd.Execute()
}
