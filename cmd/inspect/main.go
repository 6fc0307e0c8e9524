// Command inspect dumps the session store for operators: chats, participant
// edges, messages and users, straight from a Badger directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "chat:", "Prefix to scan (chat:, msg:, part:, user:, active:)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db path")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf(" session store @ %s (prefix %q) ", *dbPath, *prefix)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Created", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append(describe(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func describe(key string, value []byte) []string {
	kind := key
	if i := strings.Index(key, ":"); i > 0 {
		kind = key[:i]
	}

	fields := map[string]any{}
	_ = json.Unmarshal(value, &fields)

	created := "-"
	if raw, ok := fields["created_at"].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			created = at.Format("2006-01-02 15:04:05")
		}
	}

	detail := ""
	switch kind {
	case "chat":
		detail = fmt.Sprintf("status=%v", fields["status"])
	case "msg":
		detail = fmt.Sprintf("sender=%v lang=%v text=%v", fields["sender_id"], fields["lang"], fields["content"])
	case "user":
		detail = fmt.Sprintf("guest=%v", fields["is_guest"])
	case "part", "active":
		// Index entries store the referenced id as a bare value.
		detail = string(value)
	default:
		detail = fmt.Sprintf("size=%d bytes", len(value))
	}

	return []string{key, strings.ToUpper(kind), created, detail}
}
