package main

import "webvulnscan/cmd"

func main() {
	cmd.Execute()
}
