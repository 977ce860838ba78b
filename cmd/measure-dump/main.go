// Command measure-dump prints the measurements of a saved session file as
// CSV on stdout. The plain table carries one row per measurement; -full adds
// per-vertex coordinates and the image intensity sampled at each vertex,
// which requires the referenced image files to be readable.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"measuretool/internal/project"
	"measuretool/internal/session"
)

func main() {
	log.SetFlags(0)

	full := flag.Bool("full", false, "include vertex coordinates and sampled intensity")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-full] session.measproj\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := project.Load(flag.Arg(0))
	if err != nil {
		log.Fatalf("loading %s: %v", flag.Arg(0), err)
	}

	sess := session.New()
	sess.On(session.EventStatus, func(data interface{}) {
		if text, ok := data.(string); ok {
			fmt.Fprintln(os.Stderr, text)
		}
	})
	sess.FromPortable(f)

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if *full {
		writeFullDump(w, sess.ExportFullDump())
	} else {
		writeTable(w, sess.ExportTable())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("writing csv: %v", err)
	}
}

func writeTable(w *csv.Writer, rows []session.TableRow) {
	_ = w.Write([]string{"image", "index", "kind", "value_px", "value", "unit", "filename"})
	for _, row := range rows {
		_ = w.Write(tableFields(row))
	}
}

func writeFullDump(w *csv.Writer, rows []session.DumpRow) {
	_ = w.Write([]string{"image", "index", "kind", "value_px", "value", "unit", "filename",
		"vertex", "x", "y", "intensity"})
	for _, row := range rows {
		base := tableFields(row.TableRow)
		for i, p := range row.Points {
			rec := append(append([]string(nil), base...),
				strconv.Itoa(i+1),
				formatFloat(p.X),
				formatFloat(p.Y),
				formatFloat(row.Intensity[i]),
			)
			_ = w.Write(rec)
		}
	}
}

func tableFields(row session.TableRow) []string {
	return []string{
		strconv.Itoa(row.ImageIndex + 1),
		strconv.Itoa(row.MeasurementIndex + 1),
		row.Kind.String(),
		formatFloat(row.ValuePixels),
		formatFloat(row.ValueUnits),
		row.Unit,
		row.Filename,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
