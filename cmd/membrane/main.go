// Command membrane verifies and drives membrane guest modules from the
// command line.
package main

func main() {
	Execute()
}
