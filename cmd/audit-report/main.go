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
	"github.com/taomama/groupbuy_backend/workflow"
)

// Generates (or fetches, if already generated) the monthly audit report and
// runs the reconciliation checks for both half-month periods.
func main() {
	month := flag.String("month", "", "Audit month (YYYYMM); defaults to last month")
	flag.Parse()

	m := strings.TrimSpace(*month)
	if m == "" {
		now := time.Now().UTC()
		m = now.AddDate(0, 0, -now.Day()).Format("200601")
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	logger := config.GetLogger()
	ctx := context.Background()

	report, err := workflow.GenerateAuditReport(ctx, db, logger, m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, period := range []string{m + "a", m + "b"} {
		findings, err := workflow.RunReconciliationChecks(ctx, db, logger, period)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, f := range findings {
			fmt.Printf("finding [%s] %s\n", f.Check, f.Detail)
		}
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
