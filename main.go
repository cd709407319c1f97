package main

import "github.com/tkarev/bracedl/cmd"

func main() {
	cmd.Execute()
}
