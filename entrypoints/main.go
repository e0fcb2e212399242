package main

import (
	"github.com/lovewall/love-wall/cmd"
)

func main() {
	cmd.Execute()
}
