package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/CV145/Ebook-Chapter-Extractor/bookpipe"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chapters":
		cmdChapters(os.Args[2:])
	case "text":
		cmdText(os.Args[2:], false)
	case "markdown":
		cmdText(os.Args[2:], true)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `bookpipe — discover chapters in ebook files

usage:
  bookpipe chapters <file>
  bookpipe text     <file> <chapter_number>
  bookpipe markdown <file> <chapter_number>

chapters  Lists the book's chapters in reading order.
text      Prints one chapter as plain text.
markdown  Prints one EPUB chapter as Markdown.

Supported formats: %s.

Set BOOKPIPE_CONFIG to a YAML file to tune discovery parameters.
Set BOOKPIPE_DEBUG=1 for verbose logging.
`, strings.Join(bookpipe.SupportedFormats(), ", "))
}

func newPipeline() *bookpipe.Pipeline {
	var cfg bookpipe.Config
	if path := os.Getenv("BOOKPIPE_CONFIG"); path != "" {
		loaded, err := bookpipe.LoadConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	level := slog.LevelWarn
	if os.Getenv("BOOKPIPE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return bookpipe.New(cfg)
}

func cmdChapters(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "chapters requires a file path")
		os.Exit(1)
	}

	pipe := newPipeline()
	book, err := pipe.DiscoverChapters(context.Background(), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}

	if book.Title != "" {
		fmt.Printf("%s (%s)\n", book.Title, book.Format)
	} else {
		fmt.Printf("%s (%s)\n", book.Path, book.Format)
	}
	for _, ch := range book.Chapters {
		switch ref := ch.Ref.(type) {
		case bookpipe.EpubRef:
			fmt.Printf("%3d. %-60s %s\n", ch.Order, ch.Title, ref.Href)
		case bookpipe.PdfRef:
			fmt.Printf("%3d. %-60s pages %d-%d\n", ch.Order, ch.Title, ref.StartPage, ref.EndPage)
		}
	}
	if q := book.Quality; q != nil {
		fmt.Fprintf(os.Stderr, "strategy: %s", q.Strategy)
		if q.Strategy == bookpipe.StrategyTocPage {
			fmt.Fprintf(os.Stderr, "  offset: %d (confidence %.0f%%)", q.PageOffset, q.OffsetConfidence()*100)
		}
		if q.Degraded() {
			fmt.Fprint(os.Stderr, "  [degraded]")
		}
		fmt.Fprintln(os.Stderr)
	}
}

func cmdText(args []string, markdown bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "text requires a file path and a chapter number")
		os.Exit(1)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		fmt.Fprintln(os.Stderr, "chapter_number must be a positive integer")
		os.Exit(1)
	}

	pipe := newPipeline()
	ctx := context.Background()
	book, err := pipe.DiscoverChapters(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}
	if n > len(book.Chapters) {
		fmt.Fprintf(os.Stderr, "chapter %d not found: book has %d chapters\n", n, len(book.Chapters))
		os.Exit(1)
	}

	ch := book.Chapters[n-1]
	var text string
	if markdown {
		text, err = pipe.ExtractMarkdown(ctx, args[0], ch.Ref)
	} else {
		text, err = pipe.ExtractText(ctx, args[0], ch.Ref)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(text)
}
