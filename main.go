package main

import "github.com/yashrajoria/E-Commerce-loadgen/cmd"

func main() {
	cmd.Execute()
}
