// Command-line client entry point.
package main

import "github.com/mapslot/territory-engine/internal/interfaces/cli"

func main() {
	cli.Execute()
}
