package main

import "github.com/diagramlab/diagrambot/cmd"

func main() {
	cmd.Execute()
}
