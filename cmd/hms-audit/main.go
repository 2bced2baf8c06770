package main

import "github.com/upb/hms-audit/cmd/hms-audit/commands"

func main() {
	commands.Execute()
}
