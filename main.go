package main

import "github.com/sleepsift/sleepsift-cli/cmd"

func main() {
	cmd.Execute()
}
