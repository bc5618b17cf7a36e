// Command xmysql-cli is a terminal demo client exercising this module's
// own Connection API instead of database/sql. Grounded on the teacher's
// client/main.go, which paired the same termui-based CLI/GUI split with a
// database/sql-backed client; the I/O and rendering code here follows that
// shape, rewired to go.mysql-client's own wire protocol implementation.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	xmysql "github.com/xmysql/go-mysql-client"
	"github.com/xmysql/go-mysql-client/internal/resultset"
)

type cliConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type client struct {
	cfg   cliConfig
	conn  *xmysql.Conn
	isGUI bool
}

func newClient(cfg cliConfig, isGUI bool) *client {
	return &client{cfg: cfg, isGUI: isGUI}
}

func (c *client) connect() error {
	conn, err := xmysql.Connect(xmysql.Config{
		Host:     c.cfg.Host,
		Port:     c.cfg.Port,
		User:     c.cfg.User,
		Password: c.cfg.Password,
		Database: c.cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *client) close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// queryResult is the CLI's own flattened view of a Statement result,
// independent of whether the underlying statement returned a cursor or an
// update count.
type queryResult struct {
	Columns     []string
	Rows        [][]string
	RowsCount   int64
	Message     string
	IsSelect    bool
	ExecuteTime time.Duration
}

func (c *client) executeQuery(query string) (*queryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	stmt := c.conn.CreateStatement(resultset.ForwardOnly, resultset.ReadOnly)
	defer stmt.Close()

	if strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return c.executeSelect(stmt, query)
	}
	return c.executeNonSelect(stmt, query)
}

func (c *client) executeSelect(stmt *xmysql.Statement, query string) (*queryResult, error) {
	start := time.Now()

	rs, err := stmt.ExecuteQuery(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rs.Close()

	columns := make([]string, rs.ColumnCount())
	for i := range columns {
		columns[i] = rs.ColumnName(i)
	}

	var data [][]string
	for {
		ok, err := rs.Next()
		if err != nil {
			return nil, fmt.Errorf("reading row failed: %w", err)
		}
		if !ok {
			break
		}
		row := make([]string, len(columns))
		for i := range columns {
			s, err := rs.GetString(i + 1)
			if err != nil {
				return nil, err
			}
			if rs.WasNull() {
				row[i] = "NULL"
			} else {
				row[i] = s
			}
		}
		data = append(data, row)
	}

	elapsed := time.Since(start)
	return &queryResult{
		Columns:     columns,
		Rows:        data,
		RowsCount:   int64(len(data)),
		IsSelect:    true,
		ExecuteTime: elapsed,
		Message:     fmt.Sprintf("%d rows in set (%.3f sec)", len(data), elapsed.Seconds()),
	}, nil
}

func (c *client) executeNonSelect(stmt *xmysql.Statement, query string) (*queryResult, error) {
	start := time.Now()

	affected, err := stmt.ExecuteUpdate(query)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	elapsed := time.Since(start)

	return &queryResult{
		RowsCount:   affected,
		IsSelect:    false,
		ExecuteTime: elapsed,
		Message:     fmt.Sprintf("Query OK, %d row(s) affected (%.3f sec)", affected, elapsed.Seconds()),
	}, nil
}

func (c *client) startCLI() {
	fmt.Printf("Welcome to the xmysql client!\n")
	fmt.Printf("Connected to: %s:%d\n", c.cfg.Host, c.cfg.Port)
	fmt.Printf("User: %s\n", c.cfg.User)
	fmt.Printf("Database: %s\n\n", c.cfg.Database)
	fmt.Printf("Type 'help' for help, 'quit' or 'exit' to leave.\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("xmysql> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "\\q":
			fmt.Println("bye!")
			return
		case "help", "\\h":
			c.showHelp()
			continue
		case "status", "\\s":
			c.showStatus()
			continue
		case "clear", "\\c":
			fmt.Print("\033[2J\033[H")
			continue
		}

		result, err := c.executeQuery(input)
		if err != nil {
			fmt.Printf("error: %v\n\n", err)
			continue
		}
		c.displayResult(result)
	}
}

func (c *client) startGUI() {
	if err := ui.Init(); err != nil {
		log.Fatalf("failed to initialize terminal UI: %v", err)
	}
	defer ui.Close()

	inputBox := widgets.NewParagraph()
	inputBox.Title = "SQL query (Enter to execute, Ctrl+C to quit)"
	inputBox.Text = "SELECT * FROM information_schema.tables LIMIT 10;"
	inputBox.SetRect(0, 0, 80, 5)
	inputBox.BorderStyle = ui.NewStyle(ui.ColorCyan)

	resultTable := widgets.NewTable()
	resultTable.Title = "Result"
	resultTable.SetRect(0, 5, 120, 25)
	resultTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	resultTable.BorderStyle = ui.NewStyle(ui.ColorGreen)
	resultTable.RowSeparator = true
	resultTable.FillRow = true

	statusBar := widgets.NewParagraph()
	statusBar.Title = "Status"
	statusBar.Text = fmt.Sprintf("Connected to: %s:%d | User: %s | Database: %s",
		c.cfg.Host, c.cfg.Port, c.cfg.User, c.cfg.Database)
	statusBar.SetRect(0, 25, 120, 30)
	statusBar.BorderStyle = ui.NewStyle(ui.ColorYellow)

	ui.Render(inputBox, resultTable, statusBar)

	uiEvents := ui.PollEvents()
	currentQuery := inputBox.Text

	for {
		e := <-uiEvents
		switch e.ID {
		case "q", "<C-c>":
			return
		case "<Enter>":
			result, err := c.executeQuery(currentQuery)
			if err != nil {
				statusBar.Text = fmt.Sprintf("error: %v", err)
				statusBar.BorderStyle = ui.NewStyle(ui.ColorRed)
			} else {
				c.displayGUIResult(result, resultTable)
				statusBar.Text = result.Message
				statusBar.BorderStyle = ui.NewStyle(ui.ColorGreen)
			}
			ui.Render(inputBox, resultTable, statusBar)
		case "<Backspace>":
			if len(currentQuery) > 0 {
				currentQuery = currentQuery[:len(currentQuery)-1]
				inputBox.Text = currentQuery
				ui.Render(inputBox)
			}
		default:
			if len(e.ID) == 1 && e.ID[0] >= 32 && e.ID[0] <= 126 {
				currentQuery += e.ID
				inputBox.Text = currentQuery
				ui.Render(inputBox)
			}
		}
	}
}

func (c *client) displayResult(result *queryResult) {
	if result.IsSelect && len(result.Rows) > 0 {
		c.printTable(result.Columns, result.Rows)
	}
	fmt.Printf("%s\n\n", result.Message)
}

func (c *client) displayGUIResult(result *queryResult, table *widgets.Table) {
	if result.IsSelect && len(result.Rows) > 0 {
		rows := [][]string{result.Columns}
		rows = append(rows, result.Rows...)
		table.Rows = rows
		table.RowStyles = make(map[int]ui.Style)
		table.RowStyles[0] = ui.NewStyle(ui.ColorWhite, ui.ColorBlue, ui.ModifierBold)
	} else {
		table.Rows = [][]string{{"done"}}
	}
}

func (c *client) printTable(columns []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	colWidths := make([]int, len(columns))
	for i, col := range columns {
		colWidths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	c.printSeparator(colWidths)
	fmt.Print("|")
	for i, col := range columns {
		fmt.Printf(" %-*s |", colWidths[i], col)
	}
	fmt.Println()
	c.printSeparator(colWidths)

	for _, row := range rows {
		fmt.Print("|")
		for i, cell := range row {
			if i < len(colWidths) {
				fmt.Printf(" %-*s |", colWidths[i], cell)
			}
		}
		fmt.Println()
	}
	c.printSeparator(colWidths)
}

func (c *client) printSeparator(colWidths []int) {
	fmt.Print("+")
	for _, width := range colWidths {
		fmt.Print(strings.Repeat("-", width+2) + "+")
	}
	fmt.Println()
}

func (c *client) showHelp() {
	fmt.Println("xmysql client help:")
	fmt.Println("  help, \\h     show this help")
	fmt.Println("  quit, \\q     quit the client")
	fmt.Println("  exit         quit the client")
	fmt.Println("  status, \\s   show connection status")
	fmt.Println("  clear, \\c    clear the screen")
	fmt.Println()
	fmt.Println("SQL commands:")
	fmt.Println("  SELECT * FROM table_name;")
	fmt.Println("  INSERT INTO table_name VALUES (...);")
	fmt.Println("  UPDATE table_name SET column=value WHERE condition;")
	fmt.Println("  DELETE FROM table_name WHERE condition;")
	fmt.Println()
}

func (c *client) showStatus() {
	fmt.Printf("connection status:\n")
	fmt.Printf("  server: %s:%d\n", c.cfg.Host, c.cfg.Port)
	fmt.Printf("  user: %s\n", c.cfg.User)
	fmt.Printf("  database: %s\n", c.cfg.Database)

	if c.conn != nil && c.conn.IsValid(2*time.Second) {
		fmt.Printf("  status: connected\n")
	} else {
		fmt.Printf("  status: disconnected\n")
	}
	fmt.Println()
}

func parseArgs() (cliConfig, bool, bool) {
	cfg := cliConfig{
		Host:     "127.0.0.1",
		Port:     3306,
		User:     "root",
		Password: "",
		Database: "",
	}

	isGUI := false
	showHelp := false

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-h", "--host":
			if i+1 < len(args) {
				cfg.Host = args[i+1]
				i++
			}
		case "-P", "--port":
			if i+1 < len(args) {
				if port, err := strconv.Atoi(args[i+1]); err == nil {
					cfg.Port = port
				}
				i++
			}
		case "-u", "--user":
			if i+1 < len(args) {
				cfg.User = args[i+1]
				i++
			}
		case "-p", "--password":
			if i+1 < len(args) {
				cfg.Password = args[i+1]
				i++
			}
		case "-D", "--database":
			if i+1 < len(args) {
				cfg.Database = args[i+1]
				i++
			}
		case "--gui":
			isGUI = true
		case "--help":
			showHelp = true
		}
	}

	return cfg, isGUI, showHelp
}

func printUsage() {
	fmt.Println("xmysql-cli - connect to a MySQL server")
	fmt.Println()
	fmt.Println("usage:")
	fmt.Println("  xmysql-cli [options]")
	fmt.Println()
	fmt.Println("options:")
	fmt.Println("  -h, --host HOST      server host (default: 127.0.0.1)")
	fmt.Println("  -P, --port PORT      server port (default: 3306)")
	fmt.Println("  -u, --user USER      username (default: root)")
	fmt.Println("  -p, --password PASS  password")
	fmt.Println("  -D, --database DB    database name")
	fmt.Println("  --gui                enable the terminal GUI")
	fmt.Println("  --help               show this help")
	fmt.Println()
}

func main() {
	cfg, isGUI, showHelpFlag := parseArgs()

	if showHelpFlag {
		printUsage()
		return
	}

	c := newClient(cfg, isGUI)

	fmt.Printf("connecting to %s:%d...\n", cfg.Host, cfg.Port)
	if err := c.connect(); err != nil {
		log.Fatalf("connection failed: %v", err)
	}
	defer c.close()

	fmt.Println("connected!")

	if isGUI {
		c.startGUI()
	} else {
		c.startCLI()
	}
}
