package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gift-practice/giftpractice/internal/gift"
)

// giftcheck parses GIFT files and reports questions a practice run would
// trip over: no correct option, several correct options, or too few options.
func main() {
	jsonOut := flag.Bool("json", false, "emit the report as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: giftcheck [-json] file.gift [file.gift ...]")
		os.Exit(2)
	}

	dirty := false
	for _, path := range flag.Args() {
		bank, err := gift.ParseFile(path)
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		rep := gift.Validate(bank)
		if !rep.Clean() {
			dirty = true
		}
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string]any{"file": path, "report": rep})
			continue
		}
		printReport(path, rep)
	}
	if dirty {
		os.Exit(1)
	}
}

func printReport(path string, rep gift.Report) {
	fmt.Printf("%s: %d questions, %d categories\n", path, rep.TotalQuestions, len(rep.Categories))
	for _, n := range rep.NoCorrect {
		fmt.Printf("  question %s: no correct option\n", n)
	}
	for _, n := range rep.MultipleCorrect {
		fmt.Printf("  question %s: multiple correct options\n", n)
	}
	for _, n := range rep.TooFewOptions {
		fmt.Printf("  question %s: fewer than %d options\n", n, gift.MinOptions)
	}
	if rep.Clean() {
		fmt.Println("  ok")
	}
}
