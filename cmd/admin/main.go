package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"corebank/internal/audit"
	"corebank/internal/config"
	"corebank/internal/history"
	"corebank/internal/ledger"
	"corebank/internal/migrations"
	"corebank/pkg/logger"
)

const usage = "Expected subcommand: report | pending | approve | reject | migrate"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		log.Println("[ERROR]", usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "report":
		err = runReport(os.Args[2:])
	case "pending":
		err = runPending(os.Args[2:])
	case "approve":
		err = runReview("approve", os.Args[2:])
	case "reject":
		err = runReview("reject", os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	default:
		log.Printf("[ERROR] Unknown command %q. %s\n", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		log.Println("[ERROR]", err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, *config.DBConfig, error) {
	cfg, err := config.LoadDBConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, cfg, nil
}

// runReport writes the full statement of one account to a CSV file.
func runReport(args []string) error {
	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	accountFlag := reportCmd.String("account", "", "Account ID (required)")
	outFlag := reportCmd.String("out", "", "Output file (default account_<id>_report.csv)")

	if err := reportCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *accountFlag == "" {
		return fmt.Errorf("--account flag is required")
	}

	log.Printf("[INFO] Generating statement for account %s\n", *accountFlag)

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := history.NewService(history.NewMySQLRepository(db), audit.NewMySQLRepository(db), logger.Discard())
	lines, err := svc.Statement(ctx, *accountFlag)
	if err != nil {
		return fmt.Errorf("statement query failed: %w", err)
	}

	fileName := *outFlag
	if fileName == "" {
		fileName = fmt.Sprintf("account_%s_report.csv", *accountFlag)
	}
	file, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := writeStatement(file, lines); err != nil {
		return err
	}

	log.Printf("[SUCCESS] Report generated successfully. Rows exported: %d\n", len(lines))
	log.Printf("[INFO] Output file: %s\n", fileName)
	return nil
}

var statementHeader = []string{
	"ID",
	"Reference",
	"RequestID",
	"Type",
	"Amount",
	"BalanceBefore",
	"BalanceAfter",
	"Status",
	"Counterpart",
	"Description",
	"CreatedAt",
	"AuditTrail",
}

func writeStatement(w io.Writer, lines []history.StatementLine) error {
	bufferedWriter := bufio.NewWriter(w)
	csvWriter := csv.NewWriter(bufferedWriter)

	if err := csvWriter.Write(statementHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, line := range lines {
		if err := csvWriter.Write(statementRecord(line)); err != nil {
			return fmt.Errorf("failed writing CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return bufferedWriter.Flush()
}

func statementRecord(line history.StatementLine) []string {
	txn := line.Transaction

	counterpart := ""
	if txn.RecipientAccountID != nil {
		counterpart = *txn.RecipientAccountID
	}

	trail := make([]string, 0, len(line.AuditLogs))
	for _, entry := range line.AuditLogs {
		trail = append(trail, entry.Action+":"+entry.Status)
	}

	return []string{
		txn.ID,
		txn.Reference,
		txn.RequestID,
		string(txn.Type),
		txn.Amount.StringFixed(4),
		txn.BalanceBefore.StringFixed(4),
		txn.BalanceAfter.StringFixed(4),
		string(txn.Status),
		counterpart,
		txn.Description,
		txn.CreatedAt.Format("2006-01-02 15:04:05"),
		strings.Join(trail, ";"),
	}
}

func runPending(args []string) error {
	pendingCmd := flag.NewFlagSet("pending", flag.ExitOnError)
	pageFlag := pendingCmd.Int("page", 1, "Page number")
	sizeFlag := pendingCmd.Int("page-size", history.DefaultPageSize, "Rows per page")

	if err := pendingCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := history.NewService(history.NewMySQLRepository(db), audit.NewMySQLRepository(db), logger.Discard())
	page, err := svc.ListPending(ctx, *pageFlag, *sizeFlag)
	if err != nil {
		return fmt.Errorf("pending query failed: %w", err)
	}

	log.Printf("[INFO] Pending transactions: %d (page %d of %d)\n", page.Total, page.Page, page.TotalPages)
	for _, txn := range page.Items {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
			txn.ID,
			txn.AccountID,
			txn.Type,
			txn.Amount.StringFixed(4),
			txn.InitiatedBy,
			txn.CreatedAt.Format(time.RFC3339),
		)
	}
	return nil
}

// runReview approves or rejects a pending transaction on behalf of a staff
// member. Audit rows carry a generated request id.
func runReview(action string, args []string) error {
	reviewCmd := flag.NewFlagSet(action, flag.ExitOnError)
	txnFlag := reviewCmd.String("txn", "", "Transaction ID (required)")
	approverFlag := reviewCmd.String("approver", "", "Staff user ID (required)")

	if err := reviewCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *txnFlag == "" || *approverFlag == "" {
		return fmt.Errorf("--txn and --approver flags are required")
	}

	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	requestID := "admin-" + uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := ledger.NewService(
		ledger.NewMySQLRepository(db),
		audit.NewMySQLRepository(db),
		logger.NewLogger(),
		appCfg.ApprovalThreshold,
	)

	review := svc.Approve
	if action == "reject" {
		review = svc.Reject
	}

	txn, err := review(ctx, ledger.ReviewRequest{
		RequestID:     requestID,
		TransactionID: *txnFlag,
		ApproverID:    *approverFlag,
	})
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", action, *txnFlag, err)
	}

	log.Printf("[SUCCESS] Transaction %s is now %s (request %s)\n", txn.ID, txn.Status, requestID)
	return nil
}

func runMigrate(args []string) error {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := migrateCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	db, cfg, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db, cfg.Name, logger.NewLogger()); err != nil {
		return err
	}

	log.Println("[SUCCESS] Schema is up to date")
	return nil
}
