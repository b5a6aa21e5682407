package main

import "github.com/mabhi256/jverify/cmd"

func main() {
	cmd.Execute()
}
