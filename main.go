// Command statement-extractor converts bank statements and broker contract
// notes into typed transactions.
package main

import "github.com/insightdelivered/statement-extractor/cmd"

func main() {
	cmd.Execute()
}
