package main

import (
	"github.com/nerdneilsfield/tagbox-go/internal/cli"
)

func main() {
	cli.Execute()
}
