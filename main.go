package main

import "github.com/vicluzy/pst-extract/cmd"

func main() {
	cmd.Execute()
}
