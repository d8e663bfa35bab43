package main

import "echobench/cmd"

func main() {
	cmd.Execute()
}
