package main

import "github.com/naka-gawa/ashe-stats/cmd"

func main() {
	cmd.Execute()
}
