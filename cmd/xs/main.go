// Command xs is a developer CLI for xscrape maintenance and debugging tasks.
package main

func main() {
	Execute()
}
