package main

import "github.com/parkerpayne/bard/cmd"

func main() {
	cmd.Execute()
}
