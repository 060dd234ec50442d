package main

import "github.com/ChrisHK/label-printer/internal/cli"

func main() {
	cli.Execute()
}
