package main

import "tabcraft/cmd"

func main() {
	cmd.Execute()
}
