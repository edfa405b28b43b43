// Command payctl is a terminal wallet for the payment gateway. It keeps the active
// keypair in a passphrase-sealed key store and drives every gateway endpoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
