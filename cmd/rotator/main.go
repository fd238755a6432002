package main

import "github.com/vietddude/rotator/internal/cli"

func main() {
	cli.Execute()
}
