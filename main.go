// main.go
package main

import "agro-booking/cmd"

func main() {
	cmd.Execute()
}
