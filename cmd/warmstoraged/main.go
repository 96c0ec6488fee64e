package main

import (
	"fmt"
	"os"

	"github.com/storacha/filecoin-services-sub000/cmd/warmstoraged/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
