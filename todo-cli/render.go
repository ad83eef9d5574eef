package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chepyr/magna-todo/internal/store"
	"github.com/chepyr/magna-todo/shared/models"
)

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No todos.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tCONTENT\tIMAGES")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			shortID(t.ID), t.Status, oneLine(t.Title), oneLine(t.Content), len(t.Images))
	}
	tw.Flush()
}

// printTask shows one todo in full. Offline object URLs are shown with the
// name of the file behind them.
func printTask(w io.Writer, s *store.Store, t models.Task) {
	fmt.Fprintf(w, "id:      %s\n", t.ID)
	fmt.Fprintf(w, "status:  %s\n", t.Status)
	fmt.Fprintf(w, "title:   %s\n", t.Title)
	fmt.Fprintf(w, "content: %s\n", t.Content)
	if t.CreatedAt != nil {
		fmt.Fprintf(w, "created: %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	for _, img := range t.Images {
		if f, ok := s.ResolveImage(img); ok {
			fmt.Fprintf(w, "image:   %s (%s)\n", img, f.Name)
			continue
		}
		fmt.Fprintf(w, "image:   %s\n", shortenDataURL(img))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// data URLs can be megabytes long
func shortenDataURL(s string) string {
	if strings.HasPrefix(s, "data:") && len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}
