package main

import "github.com/example/nihongo/cmd"

func main() {
	cmd.Execute()
}
