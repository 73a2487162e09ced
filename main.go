package main

import "github.com/dazui0019/yokogawa/cmd"

func main() {
	cmd.Execute()
}
