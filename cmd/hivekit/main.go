package main

import "github.com/vietddude/hivekit/internal/cli"

func main() {
	cli.Execute()
}
