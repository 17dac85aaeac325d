package main

import "github.com/example/slot-scheduler/cmd"

func main() {
	cmd.Execute()
}
