// Command screensim runs the screenshot similarity service and its batch
// maintenance tools.
package main

func main() {
	Execute()
}
