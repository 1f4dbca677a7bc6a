package main

import "github.com/umar/livesync/internal/cli"

func main() {
	cli.Execute()
}
