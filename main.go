package main

import "github.com/webcontainer-demo/livedemo/cmd"

func main() {
	cmd.Execute()
}
