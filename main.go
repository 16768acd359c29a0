package main

import "github.com/kozaktomas/eventphoto/cmd"

func main() {
	cmd.Execute()
}
