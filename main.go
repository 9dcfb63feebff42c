package main

import "github.com/securemint/lp-bundler/cmd"

func main() {
	cmd.Execute()
}
