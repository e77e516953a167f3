package main

import "github.com/KaramelBytes/cleanloom-cli/cmd"

func main() {
	cmd.Execute()
}
