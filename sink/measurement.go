package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Measurement receives labelled physical values in order.
type Measurement interface {
	Record(label string, v float64) error
}

// Printer writes one "label: value" line per record.
type Printer struct {
	W      io.Writer
	Format string // value verb, "%g" if empty
}

func (p *Printer) Record(label string, v float64) error {
	format := p.Format
	if format == "" {
		format = "%g"
	}
	_, err := fmt.Fprintf(p.W, "%s: "+format+"\n", label, v)
	return err
}

// Record is one collected value.
type Record struct {
	Label string
	Value float64
}

// Collector keeps every record in memory.
type Collector struct {
	Records []Record
}

func (c *Collector) Record(label string, v float64) error {
	c.Records = append(c.Records, Record{Label: label, Value: v})
	return nil
}

// Values returns the collected values without labels.
func (c *Collector) Values() []float64 {
	out := make([]float64, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Value
	}
	return out
}

// CSV writes records as "label,value" rows below a header row.
type CSV struct {
	w      *csv.Writer
	header []string
	rows   int
}

// NewCSV returns a CSV sink. The header is written with the first record.
func NewCSV(w io.Writer, labelColumn, valueColumn string) *CSV {
	return &CSV{w: csv.NewWriter(w), header: []string{labelColumn, valueColumn}}
}

func (c *CSV) Record(label string, v float64) error {
	if c.header != nil {
		if err := c.w.Write(c.header); err != nil {
			return err
		}
		c.header = nil
	}
	c.rows++
	return c.w.Write([]string{label, strconv.FormatFloat(v, 'g', -1, 64)})
}

// Rows returns the number of records written.
func (c *CSV) Rows() int {
	return c.rows
}

// Flush writes any buffered rows.
func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
