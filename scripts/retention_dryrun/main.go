package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type expiredTask struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	Title     string    `db:"title"`
	CreatedBy string    `db:"created_by"`
	DeletedAt time.Time `db:"deleted_at"`
}

type expiredRosterEntry struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	StudentID string    `db:"student_id"`
	RemovedAt time.Time `db:"removed_at"`
}

func main() {
	var (
		dsn    string
		window time.Duration
		asOf   string
		limit  int
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_DSN"), "PostgreSQL DSN (defaults to DATABASE_DSN)")
	flag.DurationVar(&window, "window", 30*24*time.Hour, "retention window")
	flag.StringVar(&asOf, "as-of", "", "evaluate the sweep as of this RFC3339 time (default now)")
	flag.IntVar(&limit, "limit", 500, "maximum rows to list per table")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing DSN: pass -dsn or set DATABASE_DSN")
	}

	now := time.Now()
	if asOf != "" {
		parsed, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			log.Fatalf("invalid -as-of value: %v", err)
		}
		now = parsed
	}
	cutoff := now.Add(-window)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	var tasks []expiredTask
	err = db.Select(&tasks, `SELECT id, class_id, title, created_by, deleted_at
		FROM tasks
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		log.Fatalf("failed to list expired tasks: %v", err)
	}

	var entries []expiredRosterEntry
	err = db.Select(&entries, `SELECT id, class_id, student_id, removed_at
		FROM roster_entries
		WHERE is_removed = TRUE AND removed_at IS NOT NULL AND removed_at < $1
		ORDER BY removed_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		log.Fatalf("failed to list expired roster entries: %v", err)
	}

	fmt.Printf("Retention dry run as of %s (window %s, cutoff %s)\n\n",
		now.Format(time.RFC3339), window, cutoff.Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TASK\tCLASS\tOWNER\tTITLE\tDELETED AT\n")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.ClassID, t.CreatedBy, t.Title, t.DeletedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\n%d task(s) would be permanently deleted\n\n", len(tasks))

	fmt.Fprintf(w, "ROSTER ENTRY\tCLASS\tSTUDENT\tREMOVED AT\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.ClassID, e.StudentID, e.RemovedAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Printf("\n%d roster entr(ies) would be permanently deleted\n", len(entries))
}
