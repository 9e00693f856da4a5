package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models/reports"
	"github.com/taomama/groupbuy_backend/utils"
)

// Exports a period's settlements (or a month's audit report) to xlsx.
func main() {
	period := flag.String("period", "", "Settlement period (YYYYMMa/b) or audit month (YYYYMM)")
	out := flag.String("out", "", "Output file path; defaults to <period>.xlsx")
	audit := flag.Bool("audit", false, "Export the monthly audit report instead of settlements")
	flag.Parse()

	p := strings.TrimSpace(*period)
	if p == "" {
		fmt.Fprintln(os.Stderr, "--period is required")
		os.Exit(1)
	}
	if !*audit {
		if err := utils.ValidateSettlementPeriod(p); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	outPath := strings.TrimSpace(*out)
	if outPath == "" {
		outPath = p + ".xlsx"
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	if *audit {
		err = reports.ExportAuditReportExcel(ctx, p, f)
	} else {
		err = reports.ExportSettlementStatementsExcel(ctx, p, f)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("wrote", outPath)
}
