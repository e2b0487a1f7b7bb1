package main

import "supportchat/cmd/supportchat/commands"

func main() {
	commands.Execute()
}
