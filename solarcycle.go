package main

import (
	"solarcycle.GO/cmd"
	"solarcycle.GO/config"
	_ "solarcycle.GO/custom"
)

func main() {
	config.LoadEnv()
	cmd.Execute()
}
