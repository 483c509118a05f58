package main

import "github.com/sempr/cptest/cmd"

func main() {
	cmd.Execute()
}
