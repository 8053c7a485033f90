// Command client runs the user side of the encrypted budget planner.
//
// The client prompts for income entries, expense totals and a savings
// goal, encrypts everything under a freshly generated key set, and sends
// the ciphertexts to the server for evaluation. The decrypted metrics
// and a spending recommendation are printed at the end. The secret key
// never leaves this process.
//
// # Configuration File
//
// Create a YAML file with client settings:
//
//	addr: "127.0.0.1:8080"
//	session_timeout: 2m   # per channel operation, 0 disables
//	quiet: false
//
// # Usage
//
//	go run ./cmd/client
//	go run ./cmd/client --addr=127.0.0.1:9000
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/naurayesh/fhe-cloud-financial-tool/budget"
	"github.com/naurayesh/fhe-cloud-financial-tool/client"
	"github.com/naurayesh/fhe-cloud-financial-tool/common"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		addr       = flag.String("addr", "", "Server address (overrides config)")
	)
	flag.Parse()

	cfg := common.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = common.LoadConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := common.NewLogger(os.Stdout)
	if cfg.Quiet {
		log = common.NewQuietLogger()
	}
	log.Header("Encrypted Budget Planner - Client")

	inputs, err := readInputs(bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		fmt.Printf("Input error: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		fmt.Printf("Connect error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Printf("Connected to %s.", cfg.Addr)

	cl := client.New(log)
	cl.SetTimeout(time.Duration(cfg.SessionTimeout))
	results, advice, err := cl.RunSession(conn, *inputs)
	if err != nil {
		fmt.Printf("Session error: %v\n", err)
		os.Exit(1)
	}

	log.Header("Results")
	log.Printf("Total expenses:       %10.2f", results.TotalExpenses)
	log.Printf("Net income:           %10.2f", results.NetIncome)
	log.Printf("Goal difference:      %10.2f", results.GoalDifference)
	log.Printf("Savings contribution: %10.2f (at %.0f%% of income)",
		results.SavingsContribution, budget.SavingsRate*100)
	log.Printf("")
	log.Printf("%s", advice)
}

// readInputs collects the session figures interactively. Income entries
// end with "done"; unparseable amounts are rejected and re-prompted, not
// fatal.
func readInputs(r *bufio.Reader, w io.Writer) (*budget.Inputs, error) {
	in := new(budget.Inputs)

	fmt.Fprintln(w, "Enter income amounts one per line, then 'done':")
	for {
		line, err := readLine(r, w, fmt.Sprintf("  income #%d: ", len(in.IncomeEntries)+1))
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(line, "done") {
			break
		}
		v, err := budget.ParseAmount(line)
		if err != nil {
			fmt.Fprintf(w, "  %v, try again\n", err)
			continue
		}
		in.IncomeEntries = append(in.IncomeEntries, v)
	}

	var err error
	if in.EssentialTotal, err = readAmount(r, w, "Essential expenses total: "); err != nil {
		return nil, err
	}
	if in.NonEssentialTotal, err = readAmount(r, w, "Non-essential expenses total: "); err != nil {
		return nil, err
	}
	if in.SavingsGoal, err = readAmount(r, w, "Monthly savings goal: "); err != nil {
		return nil, err
	}
	return in, nil
}

func readAmount(r *bufio.Reader, w io.Writer, prompt string) (float64, error) {
	for {
		line, err := readLine(r, w, prompt)
		if err != nil {
			return 0, err
		}
		v, err := budget.ParseAmount(line)
		if err != nil {
			fmt.Fprintf(w, "  %v, try again\n", err)
			continue
		}
		return v, nil
	}
}

func readLine(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
