package main

import "github.com/appsworld/macho-dump/cmd/macho-dump/cmd"

func main() {
	cmd.Execute()
}
