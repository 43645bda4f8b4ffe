package main

import "github.com/rohitp30/ArasakaBot-P/cmd"

func main() {
	cmd.Execute()
}
