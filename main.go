package main

import "github.com/Angel-Nizama/web-operaciones-v2/cmd"

func main() {
	cmd.Execute()
}
