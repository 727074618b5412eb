package main

import "github.com/samsaffron/vibe-llm/cmd"

func main() {
	cmd.Execute()
}
