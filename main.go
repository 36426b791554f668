package main

import "github.com/fenilmodi00/ipo-tracker/cli"

func main() {
	cli.Execute()
}
