package main

import "github.com/fakeyudi/gitsession/cmd"

func main() {
	cmd.Execute()
}
