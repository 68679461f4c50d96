package main

import "github.com/Togather-Foundation/eventplanner/cmd/server/cmd"

func main() {
	cmd.Execute()
}
