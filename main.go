// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/nix-opengl-driver/nix-opengl-driver/cmd/nix-opengl-driver"

func main() {
	cmd.Execute()
}
