package main

import "github.com/segura08m/InnerNode/internal/cli"

func main() {
	cli.Execute()
}
