package main

import "stopkeeper/cmd"

func main() {
	cmd.Execute()
}
