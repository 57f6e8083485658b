package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch"
	"github.com/nickyhof/sqlbatch/config"
	"github.com/nickyhof/sqlbatch/core"
	"github.com/nickyhof/sqlbatch/db"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	instance    *sqlbatch.Instance
	out         io.Writer
	history     []string
	historyFile string
	quit        bool
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	workDir := flag.String("workdir", "", "Directory holding database files")
	driver := flag.String("driver", "", "Engine driver (sqlite, duckdb)")
	database := flag.String("db", "", "Database to open on start")
	journalDir := flag.String("journal", "", "Journal batches into a git repository at this directory")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute as one batch (non-interactive)")
	userName := flag.String("name", "", "User name for journal commits")
	userEmail := flag.String("email", "", "User email for journal commits")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *journalDir != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Dir = *journalDir
	}
	if *userName != "" {
		cfg.Journal.Author.Name = *userName
	}
	if *userEmail != "" {
		cfg.Journal.Author.Email = *userEmail
	}

	instance, err := sqlbatch.Open(cfg)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
	defer instance.Close()

	cli := &CLI{
		instance:    instance,
		out:         os.Stdout,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	if *database != "" {
		cli.openDatabase(*database)
	}

	// Execute SQL file if provided
	if *sqlFile != "" {
		if err := cli.importFile(*sqlFile); err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	printBanner(cfg)
	cli.loadHistory()
	cli.run(os.Stdin)
	cli.saveHistory()
}

func printBanner(cfg *config.Config) {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("SQLBatch v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║    Atomic SQL batches over %-7s    ║%s\n", BoldColor, PromptColor, cfg.Driver, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	if cfg.Journal.Enabled {
		fmt.Printf("%sJournaling batches%s\n", SuccessColor, ResetColor)
	}
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) printf(format string, args ...any) {
	fmt.Fprintf(cli.out, format, args...)
}

func (cli *CLI) fail(err error) {
	cli.printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
}

func (cli *CLI) run(in io.Reader) {
	reader := bufio.NewReader(in)
	var multiLineBuffer strings.Builder

	for !cli.quit {
		cli.printf("%s", cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil {
			cli.printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Special commands only outside multi-line mode
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Accumulate until the statement ends with a semicolon
		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		sql := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(sql) == "" {
			continue
		}

		cli.addToHistory(sql + ";")
		cli.executeStatement(sql)
	}
}

// executeStatement runs sql as a batch of one.
func (cli *CLI) executeStatement(sql string) {
	startTime := time.Now()
	results, err := cli.instance.Executor.Execute(context.Background(), core.BatchRequest{
		Statements: []core.StatementRequest{{ID: "1", SQL: sql, Params: []any{}}},
	})
	if err != nil {
		cli.fail(err)
		return
	}

	for _, result := range results {
		db.DisplayResult(cli.out, result)
	}
	cli.printf("(%s)\n", db.FormatDuration(time.Since(startTime).Seconds()))
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	dbPart := ""
	if name := cli.instance.Sessions.Name(); name != "" {
		dbPart = fmt.Sprintf(" (%s)", name)
	}

	return fmt.Sprintf("%ssqlbatch%s>%s ", PromptColor, dbPart, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))

	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		cli.printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.quit = true

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".open":
		if len(parts) > 1 {
			cli.openDatabase(parts[1])
		} else {
			cli.printf("%s✗ Usage: .open <database>%s\n", ErrorColor, ResetColor)
		}

	case ".close":
		if err := cli.instance.Sessions.Close(); err != nil {
			cli.fail(err)
		} else {
			cli.printf("%s✓ Closed%s\n", SuccessColor, ResetColor)
		}

	case ".clear", ".cls":
		cli.printf("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		cli.printf("SQLBatch version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				cli.fail(err)
			}
		} else {
			cli.printf("%s✗ Usage: .import <file.sql>%s\n", ErrorColor, ResetColor)
		}

	case ".backup":
		if len(parts) > 1 {
			cli.backup(parts[1])
		} else {
			cli.printf("%s✗ Usage: .backup <path|s3://bucket/key>%s\n", ErrorColor, ResetColor)
		}

	case ".journal":
		cli.handleJournal(parts[1:])

	default:
		cli.printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printHelp() {
	cli.printf("\n%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	cli.printf("  .help, .h             Show this help message\n")
	cli.printf("  .quit, .exit          Exit the CLI\n")
	cli.printf("  .open <db>            Make <db> the session database\n")
	cli.printf("  .close                Close the open database\n")
	cli.printf("  .import <file>        Execute a SQL file as one atomic batch\n")
	cli.printf("  .backup <target>      Snapshot the database to a path or s3:// URL\n")
	cli.printf("  .journal              List journaled batches for the open database\n")
	cli.printf("  .journal tag <name>   Tag the latest journaled batch\n")
	cli.printf("  .journal push         Push the journal to its remote\n")
	cli.printf("  .journal tags         List journal tags\n")
	cli.printf("  .journal since <t>    List journal commits since a time or duration\n")
	cli.printf("  .journal remotes      List journal remotes\n")
	cli.printf("  .journal remote add <name> <url> | remove <name>\n")
	cli.printf("  .history              Show command history\n")
	cli.printf("  .clear                Clear the screen\n")
	cli.printf("  .version              Show version info\n")
	cli.printf("\nAny other input is SQL for the engine, ended by ';'. Each statement\n")
	cli.printf("runs as its own batch; BEGIN, COMMIT and ROLLBACK are ignored.\n\n")
}

func (cli *CLI) openDatabase(name string) {
	if err := cli.instance.Sessions.Open(name); err != nil {
		cli.fail(err)
		return
	}
	cli.printf("%s✓ Using database: %s%s\n", SuccessColor, name, ResetColor)
}

func (cli *CLI) backup(target string) {
	ctx := context.Background()
	name, err := cli.instance.Sessions.ResolveName(ctx, "")
	if err != nil {
		cli.fail(err)
		return
	}

	err = cli.instance.Sessions.Acquire(ctx, name, func(h *db.Handle) error {
		return db.Backup(ctx, h, target, &cli.instance.Config.Remote)
	})
	if err != nil {
		cli.fail(err)
		return
	}
	cli.printf("%s✓ Backed up %s to %s%s\n", SuccessColor, name, target, ResetColor)
}

func (cli *CLI) handleJournal(args []string) {
	journal := cli.instance.Journal
	if journal == nil {
		cli.printf("%s✗ Journaling is not enabled (use -journal <dir>)%s\n", ErrorColor, ResetColor)
		return
	}

	if len(args) == 0 {
		name := cli.instance.Sessions.Name()
		if name == "" {
			cli.printf("%s✗ No database open%s\n", ErrorColor, ResetColor)
			return
		}
		entries, err := journal.Entries(name)
		if err != nil {
			cli.fail(err)
			return
		}
		if len(entries) == 0 {
			cli.printf("No journaled batches for %s\n", name)
			return
		}
		table := db.NewTable(cli.out)
		table.Header([]string{"When", "Batch", "Statements"})
		for _, entry := range entries {
			table.Row([]string{
				entry.When.Format(time.RFC3339),
				entry.ID,
				strconv.Itoa(len(entry.Statements)),
			})
		}
		table.Render()
		return
	}

	switch strings.ToLower(args[0]) {
	case "tag":
		if len(args) < 2 {
			cli.printf("%s✗ Usage: .journal tag <name>%s\n", ErrorColor, ResetColor)
			return
		}
		if err := journal.Tag(args[1], nil); err != nil {
			cli.fail(err)
			return
		}
		cli.printf("%s✓ Tagged %s%s\n", SuccessColor, args[1], ResetColor)

	case "push":
		if err := cli.instance.PushJournal(context.Background()); err != nil {
			cli.fail(err)
			return
		}
		cli.printf("%s✓ Journal pushed%s\n", SuccessColor, ResetColor)

	case "tags":
		names, err := journal.TagNames()
		if err != nil {
			cli.fail(err)
			return
		}
		if len(names) == 0 {
			cli.printf("No tags\n")
			return
		}
		for _, name := range names {
			cli.printf("  %s\n", name)
		}

	case "since":
		if len(args) < 2 {
			cli.printf("%s✗ Usage: .journal since <RFC3339 time|duration>%s\n", ErrorColor, ResetColor)
			return
		}
		asof, err := parseSince(args[1], time.Now())
		if err != nil {
			cli.fail(err)
			return
		}
		txns, err := journal.TransactionsSince(asof)
		if err != nil {
			cli.fail(err)
			return
		}
		table := db.NewTable(cli.out)
		table.Header([]string{"When", "Commit", "Message"})
		for _, txn := range txns {
			table.Row([]string{txn.When.Format(time.RFC3339), txn.Id[:12], strings.TrimSpace(txn.Message)})
		}
		table.Render()
		cli.printf("%d commit(s)\n", len(txns))

	case "remotes":
		remotes, err := journal.Remotes()
		if err != nil {
			cli.fail(err)
			return
		}
		if len(remotes) == 0 {
			cli.printf("No remotes\n")
			return
		}
		for _, remote := range remotes {
			cli.printf("  %s\t%s\n", remote.Name, strings.Join(remote.URLs, ", "))
		}

	case "remote":
		cli.handleJournalRemote(args[1:])

	default:
		cli.printf("%s✗ Unknown journal command: %s%s\n", ErrorColor, args[0], ResetColor)
	}
}

func (cli *CLI) handleJournalRemote(args []string) {
	journal := cli.instance.Journal
	switch {
	case len(args) == 3 && strings.EqualFold(args[0], "add"):
		if err := journal.AddRemote(args[1], args[2]); err != nil {
			cli.fail(err)
			return
		}
		cli.printf("%s✓ Remote %s set to %s%s\n", SuccessColor, args[1], args[2], ResetColor)

	case len(args) == 2 && strings.EqualFold(args[0], "remove"):
		if err := journal.RemoveRemote(args[1]); err != nil {
			cli.fail(err)
			return
		}
		cli.printf("%s✓ Remote %s removed%s\n", SuccessColor, args[1], ResetColor)

	default:
		cli.printf("%s✗ Usage: .journal remote add <name> <url> | remove <name>%s\n", ErrorColor, ResetColor)
	}
}

// parseSince accepts an RFC3339 time or a duration counted back from now.
func parseSince(value string, now time.Time) (time.Time, error) {
	if asof, err := time.Parse(time.RFC3339, value); err == nil {
		return asof, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected RFC3339 or a duration like 1h", value)
	}
	return now.Add(-d), nil
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		cli.printf("No command history\n")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		cli.printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqlbatch_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		log.WithError(err).Debug("save history")
		return
	}
	defer file.Close()

	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile runs every statement of a SQL file as a single batch. Nothing
// is applied when any statement fails.
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	statements := splitStatements(string(data))
	requests := make([]core.StatementRequest, len(statements))
	for i, stmt := range statements {
		requests[i] = core.StatementRequest{ID: strconv.Itoa(i + 1), SQL: stmt, Params: []any{}}
	}

	startTime := time.Now()
	results, err := cli.instance.Executor.Execute(context.Background(), core.BatchRequest{Statements: requests})
	if err != nil {
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) {
			cli.printf("%s[%d] ✗ %s%s\n", ErrorColor, execErr.Index+1, truncate(execErr.SQL, 50), ResetColor)
			cli.printf("      Error: %v\n", execErr.Err)
			cli.printf("%s✗ Import rolled back: %d statement(s) not applied%s\n", ErrorColor, len(statements), ResetColor)
			return nil
		}
		return err
	}

	for i, result := range results {
		detail := fmt.Sprintf("%d affected", result.Result.RowsAffected)
		if n := len(result.Result.Rows); n > 0 {
			detail = fmt.Sprintf("%d rows", n)
		}
		cli.printf("%s[%d] ✓ %s (%s)%s\n", SuccessColor, i+1, truncate(statements[i], 50), detail, ResetColor)
	}

	cli.printf("\n%s✓ Import complete: %d statement(s) in %s%s\n",
		SuccessColor, len(results), db.FormatDuration(time.Since(startTime).Seconds()), ResetColor)

	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if (ch == '\'' || ch == '"') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		// Line comments run to the end of the line
		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	// Last statement may lack a semicolon
	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
