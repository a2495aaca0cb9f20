// Idiomatic entrypoint for the Cobra CLI; delegates to the root command.
package main

func main() {
	Execute()
}
