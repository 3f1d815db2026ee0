package main

import "github.com/kamusis/skillroute/cmd"

func main() {
	cmd.Execute()
}
