// Curve — image editor core with a browser client.
//
// Usage:
//
//	curve serve [--addr :8080] [--open]
//	curve export <image|project.curve> [--op enhance --op upscale=2 ...] [-o out.png]
//	curve init [--output curve.toml]
package main

import "github.com/xob0t/curve/cmd/curve/cmd"

func main() {
	cmd.Execute()
}
