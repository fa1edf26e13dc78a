package main

import "github.com/EpykLab/gryt-ci/internal/cli"

func main() {
	cli.Execute()
}
