// Command queryflow is a conversational analytics assistant: it decomposes
// questions into task graphs, executes them against registered tools, and
// keeps per-session memory.
package main

func main() {
	Execute()
}
