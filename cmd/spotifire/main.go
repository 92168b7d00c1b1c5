// Command spotifire builds and serves music personality profiles.
package main

import "github.com/ROrodrigp/spotifire/internal/cli"

func main() {
	cli.Execute()
}
