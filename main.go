package main

import "github.com/bhs-school/fee-payments/cmd"

func main() {
	cmd.Execute()
}
