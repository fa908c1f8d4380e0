package main

import "github.com/hypergopher/inkwell/cmd/inkwell/commands"

func main() {
	commands.Execute()
}
