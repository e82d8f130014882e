package main

import "github.com/audiolibrelab/recdroidvid/cmd"

func main() {
	cmd.Execute()
}
