package main

import "github.com/semroute/semroute/cmd/semroute/cmd"

func main() {
	cmd.Execute()
}
