package main

import "github.com/eslsoft/tafsirnet/cmd"

func main() {
	cmd.Execute()
}
