// Command trackerctl runs operator tasks against the baby tracker database.
package main

func main() {
	Execute()
}
