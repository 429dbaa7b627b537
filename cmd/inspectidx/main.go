// Inspect a secondary B+ tree index file.
// Usage: go run ./cmd/inspectidx <index-file> <relation-name> <attr-byte-offset> [--dump]
// Example: go run ./cmd/inspectidx databases/demo/indexes/students.4 students 4
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/sanpoyur-dust/bplus-tree/internal/bptree"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <index-file> <relation-name> <attr-byte-offset> [--dump]\n", os.Args[0])
		os.Exit(1)
	}
	indexPath := os.Args[1]
	relationName := os.Args[2]
	attrOffset, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("attr-byte-offset: %v", err)
	}
	dump := len(os.Args) > 4 && os.Args[4] == "--dump"

	idx, err := bptree.Open(indexPath, relationName, int32(attrOffset), bptree.AttrTypeInteger, nil)
	if err != nil {
		log.Fatalf("open %s: %v", indexPath, err)
	}
	defer idx.Close()

	stats, err := idx.Inspect()
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}

	fmt.Printf("Index file: %s\n", indexPath)
	fmt.Printf("  relation        = %s\n", stats.RelationName)
	fmt.Printf("  attr byte offset = %d\n", stats.AttrByteOffset)
	fmt.Printf("  depth           = %d\n", stats.Depth)
	fmt.Printf("  internal nodes  = %s\n", humanize.Comma(int64(stats.InternalNodes)))
	fmt.Printf("  leaf nodes      = %s\n", humanize.Comma(int64(stats.LeafNodes)))
	fmt.Printf("  total keys      = %s\n", humanize.Comma(int64(stats.TotalKeys)))
	if stats.HasKeys {
		fmt.Printf("  key range       = [%d, %d]\n", stats.MinKey, stats.MaxKey)
	} else {
		fmt.Println("  key range       = (empty)")
	}
	if info, statErr := os.Stat(indexPath); statErr == nil {
		fmt.Printf("  file size       = %s\n", humanize.Bytes(uint64(info.Size())))
	}

	if dump {
		fmt.Println()
		if err := idx.Dump(os.Stdout); err != nil {
			log.Fatalf("dump: %v", err)
		}
	}
}
