package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/efeurhobobullish/vcf-generator/repositories"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	showContacts := flag.Bool("contacts", false, "List every contact under its session")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repo := repositories.NewSessionRepository(db, slog.Default())
	sessions, err := repo.List()
	if err != nil {
		log.Fatal(err)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Name", "Created", "Expires", "Contacts", "State"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	now := time.Now().UTC()
	for _, s := range sessions {
		table.Append([]string{
			s.ID.String(),
			s.Name,
			s.CreatedAt.Local().Format(time.DateTime),
			s.ExpiresAt.Local().Format(time.DateTime),
			strconv.Itoa(len(s.Contacts)),
			renderState(s.State(now)),
		})
		if *showContacts {
			for _, c := range s.Contacts {
				table.Append([]string{"", "  " + c.FullName, c.AddedAt.Local().Format(time.TimeOnly), "", c.Phone, ""})
			}
		}
	}
	table.Render()
	fmt.Printf("\n%d session(s)\n", len(sessions))
}

func renderState(state domain.SessionState) string {
	switch state {
	case domain.Open:
		return color.Green.Sprint(state)
	case domain.ExpiredNotified:
		return color.Cyan.Sprint(state)
	default:
		return color.Yellow.Sprint(state)
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves a value log that needs truncating first
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
