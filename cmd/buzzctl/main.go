// Command buzzctl validates game documents and inspects stored rooms.
package main

import (
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
