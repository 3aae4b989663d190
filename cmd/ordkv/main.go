package main

import "github.com/andreyvit/ordkv/internal/cli"

func main() {
	cli.Execute()
}
