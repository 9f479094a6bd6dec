// Command leaseprobe runs one PDF through extraction, chunking and term
// extraction without touching any store. Useful when tuning prompts:
//
//	go run ./cmd/leaseprobe -pdf lease.pdf
//	go run ./cmd/leaseprobe -pdf lease.pdf -chunks -skip-llm
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"leaselens-backend/internal/chunking"
	"leaselens-backend/internal/extract"
	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/llm"
	"leaselens-backend/internal/llm/ollama"
	"leaselens-backend/internal/llm/openai"
	"leaselens-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	pdfPath := flag.String("pdf", "", "Path to lease PDF")
	outPath := flag.String("out", "", "Path to write the terms JSON (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider: openai or ollama")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	showChunks := flag.Bool("chunks", false, "Print chunk boundaries and sections")
	skipLLM := flag.Bool("skip-llm", false, "Stop after chunking")
	flag.Parse()

	if strings.TrimSpace(*pdfPath) == "" {
		exitErr("pdf path is required")
	}
	data, err := os.ReadFile(*pdfPath)
	if err != nil {
		exitErr(fmt.Sprintf("read pdf: %v", err))
	}

	ctx := context.Background()
	res, err := extract.PDF(ctx, data)
	if err != nil {
		exitErr(fmt.Sprintf("extract text: %v", err))
	}
	chunks := chunking.Split(res.Text)
	fmt.Fprintf(os.Stderr, "pages=%d chars=%d chunks=%d\n", res.PageCount, len([]rune(res.Text)), len(chunks))
	if *showChunks {
		printChunks(os.Stderr, chunks)
	}
	if *skipLLM {
		return
	}

	client, err := buildClient(cfg, *provider, *model)
	if err != nil {
		exitErr(err.Error())
	}
	raw, err := client.ExtractTerms(ctx, res.Text)
	if err != nil {
		exitErr(fmt.Sprintf("llm extract: %v", err))
	}
	terms, err := leases.ParseTerms(raw)
	if err != nil {
		exitErr(fmt.Sprintf("parse terms: %v\nraw output:\n%s", err, raw))
	}
	for _, w := range terms.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	pretty, err := json.MarshalIndent(terms, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func printChunks(w io.Writer, chunks []chunking.Chunk) {
	for _, c := range chunks {
		section := "-"
		if c.Section != nil {
			section = *c.Section
		}
		fmt.Fprintf(w, "#%d [%d,%d) %s\n", c.Index, c.Start, c.End, section)
	}
}

func buildClient(cfg config.Config, provider, model string) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model)
	case "ollama":
		return ollama.NewClient(cfg.OllamaHost, model)
	default:
		return nil, fmt.Errorf("unsupported provider: %q (use openai or ollama)", provider)
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
