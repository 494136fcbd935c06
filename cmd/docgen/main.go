// Command docgen writes the HTTP API reference from the @Title, @Route,
// @Description and @Response annotations on the handlers in internal/api.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method returns the HTTP method of the route.
func (e Endpoint) Method() string {
	method, _, _ := strings.Cut(e.Route, " ")
	return method
}

// Path returns the route without method and query.
func (e Endpoint) Path() string {
	_, rest, _ := strings.Cut(e.Route, " ")
	path, _, _ := strings.Cut(rest, "?")
	return path
}

var (
	reTitle = regexp.MustCompile(`^// @Title: (.*)`)
	reRoute = regexp.MustCompile(`^// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`^// @Description: (.*)`)
	reResp  = regexp.MustCompile(`^// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("dir", "internal/api", "directory of annotated handlers")
	out := flag.String("out", "API.md", "output file, - for stdout")
	flag.Parse()

	endpoints, err := parseDir(*apiDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *out == "-" {
		writeMarkdown(os.Stdout, endpoints)
		return
	}
	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()
	writeMarkdown(f, endpoints)
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

// parseDir collects annotated endpoints from the non-test Go files in dir,
// ordered by path then method.
func parseDir(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		found, err := parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		endpoints = append(endpoints, found...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].Path() != endpoints[j].Path() {
			return endpoints[i].Path() < endpoints[j].Path()
		}
		return endpoints[i].Method() < endpoints[j].Method()
	})
	return endpoints, nil
}

// parse reads annotation blocks; a block ends at its @Response line.
func parse(r io.Reader) ([]Endpoint, error) {
	var (
		endpoints []Endpoint
		current   Endpoint
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func writeMarkdown(w io.Writer, endpoints []Endpoint) {
	fmt.Fprintln(w, "# oasis HTTP API")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generated from handler annotations by `go run ./cmd/docgen`.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Method | Path | Title |")
	fmt.Fprintln(w, "|---|---|---|")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "| %s | `%s` | %s |\n", ep.Method(), ep.Path(), ep.Title)
	}

	for _, ep := range endpoints {
		fmt.Fprintf(w, "\n## %s\n\n", ep.Title)
		fmt.Fprintf(w, "`%s`\n\n", ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(w, "%s\n\n", ep.Description)
		}
		fmt.Fprintf(w, "Response: `%s`\n", ep.Response)
	}
}
