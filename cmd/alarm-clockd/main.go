package main

import "github.com/oshokin/sayit-alarm/cmd/alarm-clockd/cmd"

func main() {
	cmd.Execute()
}
