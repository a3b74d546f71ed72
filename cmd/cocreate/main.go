package main

import "github.com/cocreate-app/cocreate/backend/cmd/cocreate/cmd"

func main() {
	cmd.Execute()
}
