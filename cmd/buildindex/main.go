// Build a secondary B+ tree index over one attribute of a relation file.
// Usage: go run ./cmd/buildindex <relation-file> <relation-name> <attr-byte-offset> <index-dir>
// Example: go run ./cmd/buildindex databases/demo/tables/students students 4 databases/demo/indexes
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sanpoyur-dust/bplus-tree/internal/bptree"
	"github.com/sanpoyur-dust/bplus-tree/internal/diskfile"
	"github.com/sanpoyur-dust/bplus-tree/internal/relation"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Fprintf(os.Stderr, "Usage: %s <relation-file> <relation-name> <attr-byte-offset> <index-dir>\n", os.Args[0])
		os.Exit(1)
	}
	relationPath := os.Args[1]
	relationName := os.Args[2]
	attrOffset, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatalf("attr-byte-offset: %v", err)
	}
	indexDir := os.Args[4]

	if err := os.MkdirAll(indexDir, 0755); err != nil {
		log.Fatalf("mkdir %s: %v", indexDir, err)
	}

	relFile, err := diskfile.Open(relationPath)
	if err != nil {
		log.Fatalf("open relation %s: %v", relationPath, err)
	}
	defer relFile.Release()

	scanner := relation.NewScanner(relFile)

	idx, fileName, err := bptree.OpenRelationIndex(indexDir, relationName, int32(attrOffset), bptree.AttrTypeInteger, scanner)
	if err != nil {
		log.Fatalf("build index: %v", err)
	}
	defer idx.Close()

	stats, err := idx.Inspect()
	if err != nil {
		log.Fatalf("inspect freshly built index: %v", err)
	}
	fmt.Printf("built %s: depth=%d internal=%d leaves=%d keys=%d\n",
		fileName, stats.Depth, stats.InternalNodes, stats.LeafNodes, stats.TotalKeys)
}
