package main

import "github.com/ValentinKolb/dSeg/cmd"

func main() {
	cmd.Execute()
}
