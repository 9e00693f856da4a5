package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
	"github.com/taomama/groupbuy_backend/workflow"
)

// Manual/backfill settlement batch run for one period.
func main() {
	period := flag.String("period", "", "Settlement period (YYYYMMa or YYYYMMb); defaults to the period that just closed")
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before generating")
	flag.Parse()

	p := strings.TrimSpace(*period)
	if p == "" {
		p = utils.PreviousSettlementPeriod(time.Now().UTC())
	}
	if err := utils.ValidateSettlementPeriod(p); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	logger := config.GetLogger()
	result, err := workflow.GenerateSettlementBatch(context.Background(), db, logger, p, config.LoadPlatformConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}
