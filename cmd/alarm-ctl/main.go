package main

import "github.com/oshokin/sayit-alarm/cmd/alarm-ctl/cmd"

func main() {
	cmd.Execute()
}
