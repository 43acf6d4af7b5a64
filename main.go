//go:build !js

package main

import "gocond/pkg/cli"

func main() {
	cli.Execute()
}
