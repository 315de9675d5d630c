// Command noteman はノートAPIサーバーを起動する。
//
// 使い方:
//
//	noteman [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/noteman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "noteman: %v\n", err)
		os.Exit(1)
	}
}
