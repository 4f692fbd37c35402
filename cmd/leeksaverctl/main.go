// leeksaverctl is the job-control CLI: a thin flag-based dispatcher that
// talks to a running leeksaverd over its HTTP surface, matching the
// teacher's flag-free, framework-free main() style (no cobra/cli import —
// nothing in the retrieval pack reaches for one).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := flag.String("addr", "http://localhost:8080", "leeksaverd base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	switch args[0] {
	case "sync":
		runSync(client, *baseURL, args[1:])
	case "doctor":
		runDoctor(client, *baseURL, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  leeksaverctl sync trigger <name> [--code CODE] [--date YYYY-MM-DD]
  leeksaverctl sync status [--task NAME]
  leeksaverctl doctor run`)
}

func runSync(client *http.Client, baseURL string, args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("sync trigger", flag.ExitOnError)
		code := fs.String("code", "", "single symbol code to scope the run to")
		date := fs.String("date", "", "trade date YYYY-MM-DD")
		fs.Parse(args[1:])
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "sync trigger requires a task name")
			os.Exit(1)
		}
		name := fs.Arg(0)
		body, _ := json.Marshal(map[string]string{"code": *code, "date": *date})
		postAndPrint(client, baseURL+"/api/v1/sync/trigger/"+name, body)

	case "status":
		fs := flag.NewFlagSet("sync status", flag.ExitOnError)
		task := fs.String("task", "", "single task name, omit for all")
		fs.Parse(args[1:])
		url := baseURL + "/api/v1/sync/status"
		if *task != "" {
			url += "/" + *task
		}
		getAndPrint(client, url)

	default:
		usage()
		os.Exit(1)
	}
}

func runDoctor(client *http.Client, baseURL string, args []string) {
	if len(args) < 1 || args[0] != "run" {
		usage()
		os.Exit(1)
	}
	postAndPrint(client, baseURL+"/api/v1/doctor/run", nil)
}

func postAndPrint(client *http.Client, url string, body []byte) {
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func getAndPrint(client *http.Client, url string) {
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func printResponse(resp *http.Response) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read response:", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, b, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(b))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
