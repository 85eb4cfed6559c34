// This program performs administrative tasks for the ledger node.
package main

import (
	"github.com/ardanlabs/ledger/app/tooling/admin/cmd"
)

func main() {
	cmd.Execute()
}
