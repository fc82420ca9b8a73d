package main

import "github.com/vietddude/payroll/internal/cli"

func main() {
	cli.Execute()
}
