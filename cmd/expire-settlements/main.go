package main

import (
	"context"
	"fmt"
	"os"

	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/workflow"
)

// Runs the settlement retention sweep once: auto-reject stale pending
// settlements, archive old terminal ones.
func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	logger := config.GetLogger()
	rejected, archived, err := workflow.ExpireSettlements(context.Background(), db, logger, config.LoadPlatformConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("rejected=%d archived=%d\n", rejected, archived)
}
