package main

import "github.com/tradecore/access-management/cmd"

func main() {
	cmd.Execute()
}
