package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/teemow/inboxtriage/internal/triage"
)

// TimeLayout is the format of the generation timestamp.
const TimeLayout = "2006-01-02 15:04:05"

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Data is everything a report is built from.
type Data struct {
	RunID       string
	GeneratedAt time.Time
	Processed   map[string]triage.Classification
	// Details are rendered in the order given.
	Details []triage.MessageDetail
}

type row struct {
	Date    string
	From    string
	Subject string
}

type section struct {
	Title string
	Rows  []row
}

type view struct {
	RunID          string
	Generated      string
	TotalProcessed int
	Important      int
	LowPriority    int
	Sections       []section
}

func newView(d Data) view {
	v := view{
		RunID:          d.RunID,
		Generated:      d.GeneratedAt.Format(TimeLayout),
		TotalProcessed: len(d.Processed),
	}
	for _, c := range d.Processed {
		switch c {
		case triage.Important:
			v.Important++
		case triage.LowPriority:
			v.LowPriority++
		}
	}

	rows := make(map[triage.Classification][]row, len(triage.Classifications))
	for _, detail := range d.Details {
		c, ok := d.Processed[detail.ID]
		if !ok {
			continue
		}
		rows[c] = append(rows[c], row{Date: detail.Date, From: detail.From, Subject: detail.Subject})
	}
	for _, c := range triage.Classifications {
		v.Sections = append(v.Sections, section{Title: c.Title(), Rows: rows[c]})
	}
	return v
}

// Render writes the report for d to w.
func Render(w io.Writer, d Data) error {
	if err := tmpl.Execute(w, newView(d)); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteFile renders the report and atomically replaces the file at path.
func WriteFile(path string, d Data) error {
	var buf bytes.Buffer
	if err := Render(&buf, d); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}
