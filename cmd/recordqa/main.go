// Command recordqa merges and validates record files from the command line.
package main

import (
	"os"

	"github.com/JonMunkholm/recordqa/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
