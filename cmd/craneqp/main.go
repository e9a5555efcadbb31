package main

import (
	"bufio"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/yashagw/craneqp/internal/config"
	"github.com/yashagw/craneqp/internal/engine"
	"github.com/yashagw/craneqp/internal/record"
)

// demoTables are generated when CRANEQP_DEMO is set: a chain R-S-T joinable
// on b and c.
var demoTables = []struct {
	name     string
	cols     []string
	rows     int
	distinct int
}{
	{"R", []string{"a", "b"}, 2000, 200},
	{"S", []string{"b", "c"}, 500, 50},
	{"T", []string{"c", "d"}, 1000, 100},
}

func seedDemo(e *engine.Engine) error {
	rng := rand.New(rand.NewPCG(2024, 7))
	for _, tbl := range demoTables {
		schema := record.NewSchema()
		for _, c := range tbl.cols {
			schema.AddIntField(tbl.name + "." + c)
		}
		if err := e.Generate(tbl.name, schema, tbl.rows, tbl.distinct, rng); err != nil {
			return err
		}
	}
	return nil
}

func printResponse(resp engine.Response) {
	if resp.Error != "" {
		fmt.Printf("Error: %s\n\n", resp.Error)
		return
	}

	if resp.Type == "update" {
		fmt.Printf("OK\n\n")
		return
	}

	fmt.Printf("plan: %s\ncost: %d\n", resp.Plan, resp.Cost)
	if len(resp.Rows) == 0 {
		fmt.Println("(0 rows)")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, strings.Join(resp.Columns, "\t"))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, strings.Repeat("-\t", len(resp.Columns)))
	fmt.Fprint(w, "\n")

	for _, row := range resp.Rows {
		values := make([]string, len(resp.Columns))
		for i, col := range resp.Columns {
			switch v := row[col].(type) {
			case float64:
				values[i] = fmt.Sprintf("%g", v)
			case int:
				values[i] = fmt.Sprintf("%d", v)
			default:
				values[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprint(w, strings.Join(values, "\t"))
		fmt.Fprint(w, "\n")
	}
	w.Flush()
	fmt.Printf("\n(%d row(s))\n\n", len(resp.Rows))
}

func main() {
	cfg, err := config.Load(os.Getenv("CRANEQP_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer e.Close()

	if os.Getenv("CRANEQP_DEMO") != "" {
		if err := seedDemo(e); err != nil {
			log.Fatalf("Failed to generate demo tables: %v", err)
		}
	}

	fmt.Println("craneqp")
	fmt.Println("Type 'QUIT' or 'EXIT' to exit, or enter queries ending with ';'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	var queryBuilder strings.Builder

	for {
		if queryBuilder.Len() == 0 {
			fmt.Print("craneqp> ")
		} else {
			fmt.Print("      -> ")
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		upper := strings.ToUpper(strings.TrimSuffix(line, ";"))
		if queryBuilder.Len() == 0 && (upper == "QUIT" || upper == "EXIT") {
			fmt.Println("Goodbye!")
			break
		}

		if queryBuilder.Len() > 0 {
			queryBuilder.WriteString(" ")
		}
		if !strings.HasSuffix(line, ";") {
			queryBuilder.WriteString(line)
			continue
		}
		queryBuilder.WriteString(strings.TrimSuffix(line, ";"))
		query := queryBuilder.String()
		queryBuilder.Reset()
		printResponse(e.Execute(query))
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
