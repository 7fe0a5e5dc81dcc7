package main

import (
	"os"
)

func main() {
	a := newApp(os.Stdout)
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}
