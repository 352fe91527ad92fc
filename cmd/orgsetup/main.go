package main

import (
	"os"

	"orgsetup/cmd/orgsetup/commands"
)

func main() {
	os.Exit(commands.Execute())
}
