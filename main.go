package main

import "github.com/percyitchy/xleaderboard/cmd"

func main() {
	cmd.Execute()
}
