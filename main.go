package main

import "github.com/playdproj/playd/cmd"

func main() {
	cmd.Execute()
}
