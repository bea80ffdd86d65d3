// Command dynet simulates dynamic wireless networks.
package main

import (
	"context"

	"github.com/sarchlab/dynet/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	atexit.Exit(cmd.Execute(context.Background()))
}
