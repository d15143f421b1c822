package main

import "github.com/nac-codes/Block-Bard/cmd"

func main() {
	cmd.Execute()
}
